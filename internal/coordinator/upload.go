package coordinator

import (
	"github.com/n1/helix/internal/action"
	"github.com/n1/helix/internal/transfer"
)

// startUploadLoop drives the sender side of §4.6 step 4: read, encrypt, and
// send chunks sequentially until the file is exhausted. Must be called from
// within the run loop (i.e. from a handler already executing under exec);
// it launches its own goroutine for the actual read/send work and
// re-enters the run loop via exec for each chunk so all session mutation
// stays single-writer.
func (c *Coordinator) startUploadLoop(peerID, transferID string) {
	cancelCh := make(chan struct{})
	if sess, ok := c.sessionFor(peerID); ok {
		if st, ok := sess.Transfers[transferID]; ok {
			st.CancelUpload = func() {
				select {
				case <-cancelCh:
				default:
					close(cancelCh)
				}
			}
		}
	}

	go func() {
		for {
			select {
			case <-cancelCh:
				return
			default:
			}

			var finished bool
			var failErr error
			c.exec(func(co *Coordinator) {
				sess, ok := co.sessionFor(peerID)
				if !ok {
					finished = true
					return
				}
				st, ok := sess.Transfers[transferID]
				if !ok {
					finished = true
					return
				}
				if st.Status != transfer.Uploading {
					// State changed away from Uploading without the map
					// entry being cleaned up first (§4.6 step 6): notify the
					// peer and terminate here.
					co.executeOne(transfer.FileErrorMsg(peerID, co.localID, transferID, "upload cancelled"))
					co.cleanupTransfer(sess, transferID)
					finished = true
					return
				}

				start, end := transfer.ChunkBounds(st.NextChunk, st.FileSize, co.cfg.ChunkSize)
				if start >= st.FileSize {
					co.executeOne(transfer.Complete(peerID, co.localID, transferID))
					st.Status = transfer.Complete
					co.cleanupTransfer(sess, transferID)
					finished = true
					return
				}

				buf := make([]byte, end-start)
				n, err := st.Source.ReadAt(buf, start)
				if err != nil && n == 0 {
					failErr = err
					return
				}

				act, err := transfer.EncryptChunk(sess.SessionKey, peerID, co.localID, transferID, st.NextChunk, buf[:n])
				if err != nil {
					failErr = err
					return
				}
				co.executeOne(act)
				if co.metrics != nil {
					co.metrics.TransferBytesTotal.WithLabelValues("sent").Add(float64(n))
				}
				st.NextChunk++
				progress := int(int64(st.NextChunk) * int64(co.cfg.ChunkSize) * 100 / st.FileSize)
				if progress > 100 {
					progress = 100
				}
				st.Progress = progress
				co.executeOne(action.Progress(peerID, transferID, progress))
			})

			if failErr != nil {
				c.exec(func(co *Coordinator) {
					co.executeOne(transfer.FileErrorMsg(peerID, co.localID, transferID, failErr.Error()))
					if sess, ok := co.sessionFor(peerID); ok {
						co.cleanupTransfer(sess, transferID)
					}
				})
				return
			}
			if finished {
				return
			}
		}
	}()
}
