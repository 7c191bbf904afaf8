package modes

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"rimecmd/internal/terminal"
	"rimecmd/internal/transport"
	"rimecmd/internal/wire"
)

// RunTerminal drives the terminal mode: no poller is needed since every
// tty input produces exactly one request and one reply. ETX/EOT becomes
// stop_client; a commit prints to stdout (erasing and, in continue mode,
// restoring the UI); update_ui re-renders.
func RunTerminal(client *transport.Client, driver *terminal.Driver, continueMode bool) error {
	if err := driver.SetupUI(); err != nil {
		return err
	}

	for {
		input, err := driver.ReadInput()
		if err != nil {
			return fmt.Errorf("modes: terminal: read input: %w", err)
		}

		ks, err := terminal.Translate(input)
		if err != nil {
			if errors.Is(err, terminal.ErrStopClient) {
				return sendStopClient(client)
			}
			return err
		}

		req := wire.Request{
			ID: uuid.NewString(),
			Call: wire.Call{
				Method:     wire.CallProcessKey,
				ProcessKey: &wire.ProcessKeyParams{Keycode: ks.Keycode, Mask: ks.Mask},
			},
		}
		if err := client.SendRequest(req); err != nil {
			return err
		}

		reply, err := readOneReply(client)
		if err != nil {
			return err
		}

		effect := reply.Outcome.Effect
		if effect == nil {
			continue
		}

		switch {
		case effect.CommitString != nil:
			if !continueMode {
				closeErr := driver.Close()
				fmt.Fprintln(os.Stdout, *effect.CommitString)
				return closeErr
			}
			if err := driver.RemoveUI(); err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, *effect.CommitString)
			if err := driver.SetupUI(); err != nil {
				return err
			}

		case effect.UpdateUI != nil:
			if err := driver.UpdateUI(effect.UpdateUI.Composition, effect.UpdateUI.Menu); err != nil {
				return err
			}

		case effect.StopClient, effect.StopServer:
			return driver.Close()
		}
	}
}

// readOneReply drains the client's framer until a complete Reply arrives.
func readOneReply(client *transport.Client) (wire.Reply, error) {
	for {
		state, err := client.ReadOne()
		if err != nil {
			return wire.Reply{}, err
		}
		if !state.Incomplete {
			return state.Reply, nil
		}
	}
}

func sendStopClient(client *transport.Client) error {
	req := wire.Request{ID: uuid.NewString(), Call: wire.Call{Method: wire.CallStopClient}}
	if err := client.SendRequest(req); err != nil {
		return err
	}
	_, err := readOneReply(client)
	return err
}
