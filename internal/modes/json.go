// Package modes implements the three client-side mode orchestrators:
// json (stdin/stdout JSON forwarding), terminal (tty-driven UI), and
// terminal+json (both fused through one poller).
package modes

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"rimecmd/internal/poller"
	"rimecmd/internal/transport"
	"rimecmd/internal/wire"
)

// stdinSource implements poller.Source[[]byte] by forwarding raw stdin
// bytes opaquely: the client never parses them, only the server's framer
// does.
type stdinSource struct {
	f *os.File
}

func (s stdinSource) Fd() int { return int(s.f.Fd()) }

func (s stdinSource) ReadOne() ([]byte, error) {
	buf := make([]byte, 4096)
	n, err := s.f.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// jsonEvent is the fused event type for JSON mode's poller: either bytes
// read from stdin to forward verbatim, or a reply decoded off the server
// connection.
type jsonEvent struct {
	stdin *[]byte
	reply *transport.ReplyState
}

type stdinAdapter struct{ src stdinSource }

func (a stdinAdapter) Fd() int { return a.src.Fd() }
func (a stdinAdapter) ReadOne() (jsonEvent, error) {
	b, err := a.src.ReadOne()
	if err != nil {
		return jsonEvent{}, err
	}
	return jsonEvent{stdin: &b}, nil
}

type replyAdapter struct{ c *transport.Client }

func (a replyAdapter) Fd() int { return a.c.Fd() }
func (a replyAdapter) ReadOne() (jsonEvent, error) {
	state, err := a.c.ReadOne()
	if err != nil {
		return jsonEvent{}, err
	}
	return jsonEvent{reply: &state}, nil
}

// RunJSON drives the json mode: a poller fuses stdin bytes (sent to the
// server verbatim) and server replies (echoed to stdout). The loop exits
// on stop_client, a successful stop_server, a stop_server refusal (the
// more_than_one_client error, reported as a MoreThanOneClientError so the
// caller can map it to its own exit code), or commit_string unless
// continueMode is set.
func RunJSON(client *transport.Client, continueMode bool) error {
	p, err := poller.New[jsonEvent]()
	if err != nil {
		return fmt.Errorf("modes: json: %w", err)
	}
	defer p.Close()

	if err := p.Register(stdinAdapter{src: stdinSource{f: os.Stdin}}); err != nil {
		return err
	}
	if err := p.Register(replyAdapter{c: client}); err != nil {
		return err
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	pendingStopServer := map[string]bool{}

	for {
		ev, err := p.Poll()
		if err != nil {
			return err
		}

		switch {
		case ev.stdin != nil:
			if err := client.SendBytes(*ev.stdin); err != nil {
				return err
			}
			markStopServerRequest(pendingStopServer, *ev.stdin)

		case ev.reply != nil:
			if ev.reply.Incomplete {
				continue
			}
			reply := ev.reply.Reply
			data, err := json.Marshal(reply)
			if err != nil {
				return err
			}
			if _, err := out.Write(data); err != nil {
				return err
			}
			if _, err := out.WriteString("\n"); err != nil {
				return err
			}
			if err := out.Flush(); err != nil {
				return err
			}

			if reply.ID != nil && pendingStopServer[*reply.ID] {
				delete(pendingStopServer, *reply.ID)
				if oe := reply.Outcome.Error; oe != nil && oe.ID == wire.ErrMoreThanOneClient {
					return &wire.MoreThanOneClientError{}
				}
			}

			if effect := reply.Outcome.Effect; effect != nil {
				if effect.StopClient || effect.StopServer {
					return nil
				}
				if effect.CommitString != nil && !continueMode {
					return nil
				}
			}
		}
	}
}

// markStopServerRequest peeks at a chunk of bytes the caller just forwarded
// to the server to see whether it encodes a stop_server request, recording
// its id so a later more_than_one_client error reply can be recognized as a
// refusal of that specific call. json mode otherwise forwards stdin bytes
// opaquely; this is a read-only peek purely for exit-code mapping and never
// rejects or alters what gets sent.
func markStopServerRequest(pending map[string]bool, b []byte) {
	var req wire.Request
	if err := json.Unmarshal(b, &req); err != nil {
		return
	}
	if req.Call.Method == wire.CallStopServer {
		pending[req.ID] = true
	}
}
