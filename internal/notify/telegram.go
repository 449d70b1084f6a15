package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"text/template"
	"time"

	"github.com/enescakir/emoji"
	"golang.org/x/time/rate"

	"github.com/NamiraNet/namira-pool/internal/report"
)

const DefaultAPIBase = "https://api.telegram.org"

const DefaultTemplate = `{{statusEmoji .Stats.DropRate}} <b>Pool run {{.RunID}}</b>
{{emoji "rocket"}} {{.Pool.QueueCount}} queues x {{.Pool.ThreadsPerQueue}} workers, capacity {{.Pool.QueueCapacity}}
Completed: {{.Stats.Completed}}/{{.Stats.Submitted}}
Discarded: {{.Stats.Rejected}} ({{percent .Stats.DropRate}})
Average wait: {{ms .Stats.AvgWait}}
Max queue full: {{ms .Stats.MaxFullDuration}}
{{emoji "bolt"}} Total: {{ms .Elapsed}}`

type Telegram struct {
	BotToken string
	Channel  string
	Client   *http.Client
	Template string
	APIBase  string

	limiter *rate.Limiter
	mu      sync.RWMutex
	tmpl    *template.Template
}

// NewTelegram builds a notifier posting to channel. An empty template selects
// DefaultTemplate; a nil limiter sends without pacing.
func NewTelegram(botToken, channel, tmpl string, client *http.Client, limiter *rate.Limiter) *Telegram {
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Telegram{
		BotToken: botToken,
		Channel:  channel,
		Client:   client,
		Template: tmpl,
		APIBase:  DefaultAPIBase,
		limiter:  limiter,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (t *Telegram) template() (*template.Template, error) {
	t.mu.RLock()
	tmpl := t.tmpl
	t.mu.RUnlock()
	if tmpl != nil {
		return tmpl, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tmpl != nil {
		return t.tmpl, nil
	}

	funcMap := template.FuncMap{
		"statusEmoji": func(dropRate float64) string {
			switch {
			case dropRate == 0:
				return emoji.CheckMarkButton.String()
			case dropRate < 0.5:
				return emoji.Warning.String()
			default:
				return emoji.CrossMark.String()
			}
		},
		"emoji": func(name string) string {
			switch name {
			case "rocket":
				return emoji.Rocket.String()
			case "bolt":
				return emoji.HighVoltage.String()
			default:
				return emoji.RepeatButton.String()
			}
		},
		"ms": func(d time.Duration) string {
			return fmt.Sprintf("%d ms", d.Milliseconds())
		},
		"percent": func(f float64) string {
			return fmt.Sprintf("%.1f%%", f*100)
		},
	}
	parsed, err := template.New("telegram").Funcs(funcMap).Parse(t.Template)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	t.tmpl = parsed
	return parsed, nil
}

// Render executes the message template against r.
func (t *Telegram) Render(r *report.Report) (string, error) {
	tmpl, err := t.template()
	if err != nil {
		return "", err
	}

	var message bytes.Buffer
	if err := tmpl.Execute(&message, r); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return message.String(), nil
}

func (t *Telegram) Send(ctx context.Context, r *report.Report) error {
	text, err := t.Render(r)
	if err != nil {
		return err
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	jsonData, err := json.Marshal(telegramMessage{
		ChatID:    t.Channel,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.APIBase+"/bot"+t.BotToken+"/sendMessage",
		bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned non-200 status code: %d", resp.StatusCode)
	}

	return nil
}
