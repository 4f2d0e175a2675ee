package protocol

// PeerSummary is the public projection of a connected session.
type PeerSummary struct {
	ID         string `json:"id"`
	DeviceName string `json:"deviceName"`
}

// Welcome is the first message a client receives.
type Welcome struct {
	ID         string `json:"id"`
	DeviceName string `json:"deviceName"`
}

// UpdatePeers carries the full membership after every join or leave.
type UpdatePeers struct {
	Peers []PeerSummary `json:"peers"`
}

// SessionDescription mirrors RTCSessionDescriptionInit.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidate mirrors RTCIceCandidateInit.
type ICECandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// FileEntry is the advisory manifest line sent with an offer.
type FileEntry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Offer starts a negotiation. Codec names the transfer-channel encoding the
// initiator will use; browsers leave it empty.
type Offer struct {
	Offer SessionDescription `json:"offer"`
	Files []FileEntry        `json:"files"`
	Codec string             `json:"codec,omitempty"`
}

// Answer completes the description exchange.
type Answer struct {
	Answer SessionDescription `json:"answer"`
}

// Candidate carries one trickled ICE candidate.
type Candidate struct {
	Candidate ICECandidate `json:"candidate"`
}

// TotalSize sums the declared sizes.
func TotalSize(files []FileEntry) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}
