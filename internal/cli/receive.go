package cli

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/landrop/internal/app"
	"github.com/BioHazard786/landrop/internal/config"
	"github.com/BioHazard786/landrop/internal/files"
	"github.com/BioHazard786/landrop/internal/history"
	"github.com/BioHazard786/landrop/internal/negotiation"
	"github.com/BioHazard786/landrop/internal/protocol"
	"github.com/BioHazard786/landrop/internal/signaling"
	"github.com/BioHazard786/landrop/internal/transfer"
	"github.com/BioHazard786/landrop/internal/ui"
)

var (
	flagReceiveDir  string
	flagReceiveZip  bool
	flagReceiveYes  bool
	flagReceiveKeep bool
)

var receiveCmd = &cobra.Command{
	Use:     "receive",
	Aliases: []string{"r"},
	Short:   "Wait for files from other peers",
	Long: `Join the relay and wait for incoming batches. Each offer is shown with
its files and must be accepted unless --yes is given.

Examples:
  landrop receive
  landrop receive --dir ~/Downloads --keep
  landrop receive --zip --yes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return receiveFiles(cmd)
	},
}

// batch is one accepted offer being received. received counts files that
// arrived, saved or not; saved holds the paths written.
type batch struct {
	peer     string
	files    []protocol.FileEntry
	sink     files.Sink
	received int
	saved    []string
	start    time.Time
	view     *ui.TransferUI
}

func receiveFiles(cmd *cobra.Command) error {
	cfg, err := LoadConfig(config.Options{OutputDir: flagReceiveDir})
	if err != nil {
		return err
	}

	conn, err := connect(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}

	fmt.Println(ui.IdentityView(conn.self.DeviceName, conn.self.ID))
	stdin := bufio.NewReader(os.Stdin)

	var current *batch
	stopWaiting := ui.RunWaitingSpinner("Waiting for files...")
	defer func() { stopWaiting() }()

	for {
		var ev app.Event
		select {
		case ev = <-conn.events.C():
		case <-conn.done:
			failure := transfer.NewError("relay", signaling.ErrClosed)
			if current != nil {
				current.view.Finish(failure)
				current.finish(store, conn, failure)
			}
			return failure
		case <-cmd.Context().Done():
			if current != nil {
				conn.node.Cancel(current.peer)
				current.view.Finish(transfer.ErrTransferCancelled)
			}
			return nil
		}
		conn.observe(ev)

		switch ev.Kind {
		case app.EventIncomingTransfer:
			if current != nil {
				// One batch at a time.
				ev.Request.Decide(false)
				continue
			}
			stopWaiting()
			current, err = offer(conn, cfg, store, stdin, ev.Request)
			if err != nil {
				return err
			}
			if current == nil && !flagReceiveKeep {
				return nil
			}
			if current == nil {
				stopWaiting = ui.RunWaitingSpinner("Waiting for files...")
			}

		case app.EventProgress:
			if current != nil && ev.PeerID == current.peer {
				current.view.SetPercent(ev.Percent)
			}

		case app.EventFileReceived:
			if current == nil || ev.PeerID != current.peer {
				continue
			}
			current.view.MarkFile(ev.Name)
			current.save(store, conn, ev.Name, ev.Data)

		case app.EventBatchComplete, app.EventTransferFailed, app.EventNegotiationFailed:
			if current == nil || ev.PeerID != current.peer {
				continue
			}
			failure := ev.Err
			if failure != nil && ev.Kind == app.EventTransferFailed {
				failure = transfer.NewFileError("receive", ev.Name, ev.Err)
			}
			current.view.Finish(failure)
			current.finish(store, conn, failure)
			current = nil
			if !flagReceiveKeep {
				return failure
			}
			if failure != nil {
				ui.PrintError(failure.Error())
			}
			stopWaiting = ui.RunWaitingSpinner("Waiting for files...")
		}
	}
}

// offer shows an incoming batch and asks for a decision. It returns nil
// when the batch was declined.
func offer(conn *connection, cfg *config.Config, store *history.Store, stdin *bufio.Reader, req negotiation.Request) (*batch, error) {
	name := peerName(conn.peers, req.PeerID)

	items := make([]ui.FileTableItem, len(req.Files))
	for i, f := range req.Files {
		items[i] = ui.FileTableItem{Index: i + 1, Name: f.Name, Size: f.Size, Type: f.Type}
	}
	fmt.Println()
	ui.PrintInfof("%s wants to send %d file(s), %s", name, len(req.Files), ui.FormatSize(protocol.TotalSize(req.Files)))
	ui.RenderFileTable(items)

	if !flagReceiveYes && !ui.PromptConsent(stdin, os.Stdout, name) {
		req.Decide(false)
		for _, f := range req.Files {
			record(store, history.Record{
				PeerName:  name,
				Direction: transfer.Receiving.String(),
				FileName:  f.Name,
				Size:      f.Size,
				Status:    history.StatusDeclined,
			})
		}
		ui.PrintWarning("Declined")
		return nil, nil
	}

	sink, err := newSink(cfg.OutputDir, flagReceiveZip)
	if err != nil {
		req.Decide(false)
		return nil, err
	}

	names := make([]string, len(req.Files))
	sizes := make([]int64, len(req.Files))
	for i, f := range req.Files {
		names[i], sizes[i] = f.Name, f.Size
	}

	b := &batch{
		peer:  req.PeerID,
		files: req.Files,
		sink:  sink,
		start: time.Now(),
		view:  ui.NewTransferUI(ui.ModeReceive, name, names, sizes),
	}
	b.view.Start()
	req.Decide(true)
	return b, nil
}

func newSink(dir string, zipped bool) (files.Sink, error) {
	if zipped {
		return files.NewZipSink(dir)
	}
	return files.NewDirSink(dir)
}

func (b *batch) save(store *history.Store, conn *connection, name string, data []byte) {
	b.received++
	r := history.Record{
		PeerName:  peerName(conn.peers, b.peer),
		Direction: transfer.Receiving.String(),
		FileName:  name,
		Size:      int64(len(data)),
		Status:    history.StatusCompleted,
	}
	path, err := b.sink.Save(name, data)
	if err != nil {
		r.Status, r.Detail = history.StatusFailed, err.Error()
	} else {
		b.saved = append(b.saved, path)
	}
	record(store, r)
}

func (b *batch) finish(store *history.Store, conn *connection, failure error) {
	if err := b.sink.Close(); err != nil && failure == nil {
		failure = err
	}

	name := peerName(conn.peers, b.peer)
	if failure != nil {
		// Files that never arrived are recorded as failed.
		for _, f := range b.files[min(b.received, len(b.files)):] {
			record(store, history.Record{
				PeerName:  name,
				Direction: transfer.Receiving.String(),
				FileName:  f.Name,
				Size:      f.Size,
				Status:    history.StatusFailed,
				Detail:    failure.Error(),
			})
		}
		return
	}

	saved := b.savedTo()
	fmt.Println()
	ui.RenderTransferSummary("Transfer Summary", ui.TransferSummary{
		Peer:      name,
		Status:    ui.IconSuccess + " Complete",
		Files:     len(b.files),
		TotalSize: protocol.TotalSize(b.files),
		Duration:  time.Since(b.start),
		Saved:     saved,
	})
}

func (b *batch) savedTo() string {
	if z, ok := b.sink.(*files.ZipSink); ok {
		return z.Path()
	}
	if len(b.saved) == 1 {
		return b.saved[0]
	}
	if len(b.saved) > 1 {
		return fmt.Sprintf("%d files in %s", len(b.saved), flagOrDot(flagReceiveDir))
	}
	return ""
}

func flagOrDot(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

func init() {
	rootCmd.AddCommand(receiveCmd)

	receiveCmd.Flags().StringVarP(&flagReceiveDir, "dir", "d", "", "Directory to save files in")
	receiveCmd.Flags().BoolVarP(&flagReceiveZip, "zip", "z", false, "Save each batch as one zip archive")
	receiveCmd.Flags().BoolVarP(&flagReceiveYes, "yes", "y", false, "Accept every offer without asking")
	receiveCmd.Flags().BoolVarP(&flagReceiveKeep, "keep", "k", false, "Keep waiting after a batch")
}
