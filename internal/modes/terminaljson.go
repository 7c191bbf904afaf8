package modes

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"rimecmd/internal/poller"
	"rimecmd/internal/terminal"
	"rimecmd/internal/transport"
	"rimecmd/internal/wire"
)

// tjEvent is the fused event type for terminal+json mode's poller: a tty
// input token, raw stdin bytes to forward, or a reply from the server.
type tjEvent struct {
	tty   *terminal.Input
	stdin *[]byte
	reply *transport.ReplyState
}

type ttyAdapter struct{ d *terminal.Driver }

func (a ttyAdapter) Fd() int { return a.d.Fd() }
func (a ttyAdapter) ReadOne() (tjEvent, error) {
	in, err := a.d.ReadInput()
	if err != nil {
		return tjEvent{}, err
	}
	return tjEvent{tty: &in}, nil
}

type tjStdinAdapter struct{ src stdinSource }

func (a tjStdinAdapter) Fd() int { return a.src.Fd() }
func (a tjStdinAdapter) ReadOne() (tjEvent, error) {
	b, err := a.src.ReadOne()
	if err != nil {
		return tjEvent{}, err
	}
	return tjEvent{stdin: &b}, nil
}

type tjReplyAdapter struct{ c *transport.Client }

func (a tjReplyAdapter) Fd() int { return a.c.Fd() }
func (a tjReplyAdapter) ReadOne() (tjEvent, error) {
	state, err := a.c.ReadOne()
	if err != nil {
		return tjEvent{}, err
	}
	return tjEvent{reply: &state}, nil
}

// RunTerminalJSON drives the terminal+json mode: a poller fuses tty input
// (synthesized into process_key/stop_client requests with a fresh id),
// stdin bytes (forwarded opaquely, as in json mode), and server replies
// (echoed to stdout and used to drive the tty UI). The UI is erased before
// a committed string is printed and redrawn after it in continue mode; the
// JSON echo of each reply is written to stdout without erasing the UI.
func RunTerminalJSON(client *transport.Client, driver *terminal.Driver, continueMode bool) error {
	p, err := poller.New[tjEvent]()
	if err != nil {
		return fmt.Errorf("modes: terminal+json: %w", err)
	}
	defer p.Close()

	if err := p.Register(ttyAdapter{d: driver}); err != nil {
		return err
	}
	if err := p.Register(tjStdinAdapter{src: stdinSource{f: os.Stdin}}); err != nil {
		return err
	}
	if err := p.Register(tjReplyAdapter{c: client}); err != nil {
		return err
	}

	if err := driver.SetupUI(); err != nil {
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
		case ev.tty != nil:
			req, err := ttyRequest(*ev.tty)
			if err != nil {
				return err
			}
			if err := client.SendRequest(req); err != nil {
				return err
			}

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
			if err := echoReply(out, reply); err != nil {
				return err
			}
			if reply.ID != nil && pendingStopServer[*reply.ID] {
				delete(pendingStopServer, *reply.ID)
				if oe := reply.Outcome.Error; oe != nil && oe.ID == wire.ErrMoreThanOneClient {
					driver.Close()
					return &wire.MoreThanOneClientError{}
				}
			}
			done, err := applyReplyToUI(driver, reply, continueMode)
			if err != nil {
				return err
			}
			if done {
				return driver.Close()
			}
		}
	}
}

// ttyRequest translates one tty Input into a Request, synthesizing a fresh
// uuid id the way a server-originated request never needs to (the server
// only ever echoes ids a client supplied).
func ttyRequest(in terminal.Input) (wire.Request, error) {
	ks, err := terminal.Translate(in)
	if err != nil {
		if errors.Is(err, terminal.ErrStopClient) {
			return wire.Request{ID: uuid.NewString(), Call: wire.Call{Method: wire.CallStopClient}}, nil
		}
		return wire.Request{}, err
	}
	return wire.Request{
		ID: uuid.NewString(),
		Call: wire.Call{
			Method:     wire.CallProcessKey,
			ProcessKey: &wire.ProcessKeyParams{Keycode: ks.Keycode, Mask: ks.Mask},
		},
	}, nil
}

func echoReply(out *bufio.Writer, reply wire.Reply) error {
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
	return out.Flush()
}

// applyReplyToUI renders a reply's effect on the tty and reports whether
// the connection should now close.
func applyReplyToUI(driver *terminal.Driver, reply wire.Reply, continueMode bool) (done bool, err error) {
	effect := reply.Outcome.Effect
	if effect == nil {
		return false, nil
	}

	switch {
	case effect.CommitString != nil:
		if err := driver.RemoveUI(); err != nil {
			return false, err
		}
		fmt.Fprintln(os.Stdout, *effect.CommitString)
		if !continueMode {
			return true, nil
		}
		return false, driver.SetupUI()

	case effect.UpdateUI != nil:
		return false, driver.UpdateUI(effect.UpdateUI.Composition, effect.UpdateUI.Menu)

	case effect.StopClient, effect.StopServer:
		return true, nil
	}
	return false, nil
}
