package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	atasmt5 "github.com/WolfMoss/atas-mt5"
)

type Commander interface {
	Command() *cli.Command
}

var Commands = []Commander{}

func RegisterCommand(cmd Commander) {
	Commands = append(Commands, cmd)
}

const (
	defaultURL     = "ws://localhost:8766"
	requestTimeout = 10 * time.Second
)

func urlFlag(destination *string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "url",
		Usage:       "relay WebSocket `address`",
		Value:       defaultURL,
		Destination: destination,
	}
}

func floatValidator(name string, required bool) func(string) error {
	return func(s string) error {
		if s == "" {
			if required {
				return fmt.Errorf("%s is required", name)
			}
			return nil
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return fmt.Errorf("invalid %s: %s", name, s)
		}
		return nil
	}
}

// request performs one action against the relay and prints the reply. A
// reply with error status fails the command.
func request(ctx context.Context, url, action string, params any) error {
	resp, raw, err := call(ctx, url, action, params)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		buf.WriteString(raw)
	}
	fmt.Println(buf.String())

	if !resp.OK() {
		return fmt.Errorf("request failed: %s", resp.Message)
	}
	return nil
}

// call dials the relay, consumes the welcome frame, sends the request, and
// waits for the reply carrying the request id. Broadcast frames that arrive
// in between are skipped.
func call(ctx context.Context, url, action string, params any) (atasmt5.Response, string, error) {
	var zero atasmt5.Response

	frames := make(chan string, 16)
	sent := make(chan string, 1)

	client := atasmt5.New(url,
		atasmt5.WithOnReceive(func(msg string) {
			select {
			case frames <- msg:
			default:
			}
		}),
		atasmt5.WithOnSend(func(req *atasmt5.Request) {
			select {
			case sent <- req.ID:
			default:
			}
		}),
	)

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		return zero, "", err
	}
	defer client.Close(context.Background())

	frame, err := await(ctx, frames)
	if err != nil {
		return zero, "", err
	}

	var welcome atasmt5.Welcome
	if err := json.Unmarshal([]byte(frame), &welcome); err == nil && !welcome.MT5Connected {
		zap.S().Warn("relay reports MT5 is not connected")
	}

	if err := client.Send(ctx, action, params); err != nil {
		return zero, "", err
	}
	id := <-sent

	for {
		frame, err := await(ctx, frames)
		if err != nil {
			return zero, "", err
		}

		var resp atasmt5.Response
		if err := json.Unmarshal([]byte(frame), &resp); err != nil {
			continue
		}
		if resp.ID != id {
			continue
		}
		return resp, frame, nil
	}
}

func await(ctx context.Context, frames <-chan string) (string, error) {
	select {
	case frame := <-frames:
		return frame, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
