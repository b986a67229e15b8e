package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/and161185/agora/internal/chatsync"
	"github.com/and161185/agora/internal/errs"
	"github.com/and161185/agora/internal/model"
	"github.com/and161185/agora/internal/nav"
	"go.uber.org/zap"
)

const imagePrefix = "/image "

// cmdWatch follows a chat room until ctx is done, printing each message once.
// Lines read from a.in are sent to the room and shown before the server
// echoes them back.
func (a *app) cmdWatch(ctx context.Context, args []string) error {
	fs := a.flags("watch")
	room := fs.Int64("room", 0, "chat room id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := need(*room > 0, "-room"); err != nil {
		return err
	}
	if err := a.guard(string(nav.Communities)); err != nil {
		return err
	}

	updates := make(chan chatsync.Snapshot, 16)
	p := chatsync.New(a.chat, a.log,
		chatsync.WithInterval(a.cfg.PollInterval),
		chatsync.WithReconcileDelay(a.cfg.ReconcileDelay),
		chatsync.WithPageSize(a.cfg.MessagesPageSize),
		chatsync.WithOnChange(func(s chatsync.Snapshot) {
			select {
			case updates <- s:
			default:
			}
		}),
	)
	p.Select(*room)
	defer p.Stop()

	var lines <-chan string
	if a.in != nil {
		lines = readLines(ctx, a.in)
	}

	printed := map[int64]bool{}
	pollErr := false
	var retry <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			msg, err := a.sendLine(ctx, *room, line)
			if err != nil {
				fmt.Fprintf(a.out, "! %s\n", errs.Detail(err))
				continue
			}
			p.Sent(msg)
		case <-retry:
			retry = nil
			p.Retry()
		case s := <-updates:
			switch s.Status {
			case chatsync.Error:
				fmt.Fprintf(a.out, "! %s (retrying)\n", errs.Detail(s.Err))
				if retry == nil {
					retry = time.After(a.cfg.PollInterval)
				}
			case chatsync.Ready:
				for _, m := range s.Messages {
					if printed[m.ID] {
						continue
					}
					printed[m.ID] = true
					fmt.Fprintln(a.out, formatMessage(m))
				}
				if s.PollErr != nil && !pollErr {
					fmt.Fprintf(a.out, "! %s\n", errs.Detail(s.PollErr))
				}
				pollErr = s.PollErr != nil
			}
		}
	}
}

// readLines yields non-empty trimmed lines until r is exhausted or ctx is done.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			select {
			case ch <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func (a *app) sendLine(ctx context.Context, room int64, line string) (model.ChatMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if url, ok := strings.CutPrefix(line, imagePrefix); ok {
		return a.chat.SendImage(ctx, room, strings.TrimSpace(url))
	}
	msg, err := a.chat.Send(ctx, room, line)
	if err == nil {
		a.log.Debug("message sent", zap.Int64("chat_id", room), zap.Int64("message_id", msg.ID))
	}
	return msg, err
}

func formatMessage(m model.ChatMessage) string {
	who := "unknown"
	switch {
	case m.IsSender:
		who = "me"
	case m.SenderName != nil && *m.SenderName != "":
		who = *m.SenderName
	case m.SenderID != nil:
		who = m.SenderID.String()
	}
	body := m.Content
	if m.Type == model.MessageImage {
		body = "[image] " + body
	}
	return fmt.Sprintf("%s %s: %s", m.SentAt.UTC().Format(time.RFC3339), who, body)
}
