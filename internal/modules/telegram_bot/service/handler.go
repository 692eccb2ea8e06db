package service

import (
	"fmt"
	"strings"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (t *Telegram) handleUpdate(update tgbot.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}
	// only the configured chat may talk to the bot
	if msg.Chat.ID != t.chatID {
		return
	}
	switch msg.Command() {
	case "start", "help":
		t.Send("Signal bot. Commands: /status")
	case "status":
		t.Send(t.statusText(time.Now()))
	}
}

func (t *Telegram) statusText(now time.Time) string {
	if t.state == nil {
		return "no state"
	}
	var b strings.Builder
	ready := "starting"
	if t.state.Ready() {
		ready = "ready"
	}
	fmt.Fprintf(&b, "%s, up %s\n", ready, t.state.Uptime().Truncate(time.Second))

	cycles := t.state.Cycles(now)
	if len(cycles) == 0 {
		b.WriteString("no instruments cycling\n")
	}
	for _, c := range cycles {
		fmt.Fprintf(&b, "- %s last cycle %ds ago\n", c.Token, c.AgeSec)
	}
	if t.streams != nil {
		if active := t.streams.Active(); len(active) > 0 {
			fmt.Fprintf(&b, "streams: %s\n", strings.Join(active, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
