package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/landrop/internal/app"
	"github.com/BioHazard786/landrop/internal/config"
	"github.com/BioHazard786/landrop/internal/files"
	"github.com/BioHazard786/landrop/internal/history"
	"github.com/BioHazard786/landrop/internal/negotiation"
	"github.com/BioHazard786/landrop/internal/transfer"
	"github.com/BioHazard786/landrop/internal/ui"
)

var sendCmd = &cobra.Command{
	Use:     "send <peer> <file>...",
	Aliases: []string{"s"},
	Short:   "Send files to a peer",
	Long: `Send files to a peer on the same relay. The peer is named by its id or
display name (a unique prefix is enough); run "landrop peers" to list them.

Examples:
  landrop send "Kitchen Tablet" photo.jpg notes.txt
  landrop send --codec msgpack 3f2c9a1e-... backup.tar`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendFiles(cmd, args[0], args[1:])
	},
}

func sendFiles(cmd *cobra.Command, target string, paths []string) error {
	stopSpinner := ui.RunSpinner("Validating files...")
	infos, err := files.ValidateFiles(paths)
	stopSpinner()
	if err != nil {
		return err
	}

	items := make([]ui.FileTableItem, len(infos))
	for i, f := range infos {
		items[i] = ui.FileTableItem{Index: i + 1, Name: f.Name, Size: f.Size, Type: f.Type}
	}
	fmt.Println()
	ui.RenderFileTable(items)

	cfg, err := LoadConfig(config.Options{})
	if err != nil {
		return err
	}

	conn, err := connect(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	peer, err := resolvePeer(conn.peers, target)
	if err != nil {
		return err
	}

	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}

	if err := conn.node.Send(peer.ID, sourcesOf(infos), cfg.Codec); err != nil {
		return transfer.NewError("offer files", err)
	}

	names := make([]string, len(infos))
	sizes := make([]int64, len(infos))
	for i, f := range infos {
		names[i], sizes[i] = f.Name, f.Size
	}
	view := ui.NewTransferUI(ui.ModeSend, peer.DeviceName, names, sizes)
	view.Start()
	view.SetState(fmt.Sprintf("Waiting for %s to accept...", peer.DeviceName))

	start := time.Now()
	err = waitForSend(cmd, conn, peer.ID, view)
	view.Finish(err)

	status, detail := history.StatusCompleted, ""
	switch {
	case errors.Is(err, transfer.ErrTransferDeclined):
		status, detail = history.StatusDeclined, err.Error()
	case err != nil:
		status, detail = history.StatusFailed, err.Error()
	}
	for _, f := range infos {
		record(store, history.Record{
			PeerName:  peer.DeviceName,
			Direction: transfer.Sending.String(),
			FileName:  f.Name,
			Size:      f.Size,
			Status:    status,
			Detail:    detail,
		})
	}
	if err != nil {
		return err
	}

	fmt.Println()
	ui.RenderTransferSummary("Transfer Summary", ui.TransferSummary{
		Peer:      peer.DeviceName,
		Status:    ui.IconSuccess + " Complete",
		Files:     len(infos),
		TotalSize: files.TotalSize(infos),
		Duration:  time.Since(start),
	})
	return nil
}

// waitForSend follows the node's events until the batch to peerID is done.
func waitForSend(cmd *cobra.Command, conn *connection, peerID string, view *ui.TransferUI) error {
	for {
		select {
		case ev := <-conn.events.C():
			conn.observe(ev)
			if ev.PeerID != peerID && ev.Kind != app.EventIncomingTransfer {
				continue
			}
			switch ev.Kind {
			case app.EventIncomingTransfer:
				// Only sending here.
				ev.Request.Decide(false)
			case app.EventProgress:
				view.SetPercent(ev.Percent)
			case app.EventBatchComplete:
				return nil
			case app.EventTransferFailed:
				return transfer.NewFileError("send", ev.Name, ev.Err)
			case app.EventNegotiationFailed:
				return negotiationError(ev.Err)
			}
		case <-view.Cancelled():
			conn.node.Cancel(peerID)
			return transfer.ErrTransferCancelled
		case <-cmd.Context().Done():
			conn.node.Cancel(peerID)
			return transfer.ErrTransferCancelled
		}
	}
}

// sourcesOf turns validated files into transfer sources.
func sourcesOf(infos []files.FileInfo) []transfer.Source {
	sources := make([]transfer.Source, len(infos))
	for i, f := range infos {
		sources[i] = transfer.Source{
			FileMeta: transfer.FileMeta{Name: f.Name, Size: f.Size, MimeType: f.Type},
			Open:     f.Open,
		}
	}
	return sources
}

// negotiationError explains a failed negotiation from the sender's side. A
// receiver that declines stays silent, so the sender only sees a timeout.
func negotiationError(err error) error {
	switch {
	case errors.Is(err, negotiation.ErrTimeout):
		return fmt.Errorf("%w (no answer before the timeout)", transfer.ErrTransferDeclined)
	case errors.Is(err, negotiation.ErrDeclined):
		return transfer.NewError("negotiate", transfer.ErrPeerDisconnected)
	}
	return transfer.NewError("negotiate", err)
}

func init() {
	rootCmd.AddCommand(sendCmd)
}
