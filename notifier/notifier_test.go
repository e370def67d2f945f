package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apartment-scraper/config"
	"apartment-scraper/models"
	"apartment-scraper/utils"
)

const testToken = "123:abc"

// fakeTelegram emulates the Bot API endpoints the notifier touches.
type fakeTelegram struct {
	mu          sync.Mutex
	getMeOK     bool
	primaryOK   bool
	fallbackOK  bool
	updates     string
	pollHold    time.Duration
	primaryMsgs []string
	fallbackMsg []map[string]string
}

func (f *fakeTelegram) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.pollHold > 0 && strings.HasSuffix(r.URL.Path, "/getUpdates") {
			time.Sleep(f.pollHold)
		}
		f.mu.Lock()
		defer f.mu.Unlock()

		if !strings.HasPrefix(r.URL.Path, "/bot"+testToken+"/") {
			http.NotFound(w, r)
			return
		}
		method := strings.TrimPrefix(r.URL.Path, "/bot"+testToken+"/")
		w.Header().Set("Content-Type", "application/json")

		switch {
		case method == "getMe":
			if !f.getMeOK {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
				return
			}
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"flat_bot"}}`)

		case method == "getUpdates":
			_, _ = io.WriteString(w, `{"ok":true,"result":`+f.updates+`}`)
			f.updates = "[]"

		case method == "sendMessage" && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json"):
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.fallbackMsg = append(f.fallbackMsg, body)
			if !f.fallbackOK {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = io.WriteString(w, `{"ok":true,"result":{}}`)

		case method == "sendMessage":
			assert.NoError(t, r.ParseForm())
			f.primaryMsgs = append(f.primaryMsgs, r.PostForm.Get("chat_id"))
			if !f.primaryOK {
				_, _ = io.WriteString(w, `{"ok":false,"error_code":500,"description":"boom"}`)
				return
			}
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`)

		default:
			http.NotFound(w, r)
		}
	})
}

func newTestNotifier(t *testing.T, fake *fakeTelegram, chatIDs ...string) *Notifier {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		TelegramBotToken:    testToken,
		TelegramChatIDs:     chatIDs,
		TelegramAPIEndpoint: srv.URL,
	}
	n := New(cfg, utils.NewNopLogger())
	require.NotNil(t, n)
	return n
}

func float(v float64) *float64 { return &v }

func TestFormatListing(t *testing.T) {
	l := &models.RawListing{
		ListingID: "222",
		URL:       "https://www.kleinanzeigen.de/s-anzeige/x/222",
		Location:  "28199 Neustadt",
		Price:     float(850),
		Size:      float(75.5),
		Rooms:     float(3),
	}

	assert.Equal(t,
		"Neue Wohnung gefunden!\n\nOrt: 28199 Neustadt\nPreis: 850€\nGröße: 75.5m²\nZimmer: 3\n\n"+
			"Link: https://www.kleinanzeigen.de/s-anzeige/x/222",
		FormatListing(l))
}

func TestFormatListing_MissingFieldsUsePlaceholder(t *testing.T) {
	msg := FormatListing(&models.RawListing{ListingID: "1", URL: "https://example.com/1"})

	assert.Contains(t, msg, "Ort: Keine Angabe")
	assert.Contains(t, msg, "Preis: Keine Angabe€")
	assert.Contains(t, msg, "Größe: Keine Angabem²")
	assert.Contains(t, msg, "Zimmer: Keine Angabe")
}

func TestFormatListing_EscapesHTML(t *testing.T) {
	msg := FormatListing(&models.RawListing{ListingID: "1", URL: "https://example.com/1", Location: "A & <B>"})
	assert.Contains(t, msg, "Ort: A &amp; &lt;B&gt;")
}

func TestNew_DisabledWithoutCredentials(t *testing.T) {
	assert.Nil(t, New(&config.Config{TelegramBotToken: testToken}, utils.NewNopLogger()))
	assert.Nil(t, New(&config.Config{TelegramChatIDs: []string{"1"}}, utils.NewNopLogger()))
}

func TestNotify_PrimaryClient(t *testing.T) {
	fake := &fakeTelegram{getMeOK: true, primaryOK: true}
	n := newTestNotifier(t, fake, "42", "43")

	_, isPrimary := n.client.(*primaryClient)
	require.True(t, isPrimary)

	ok := n.Notify(context.Background(), &models.RawListing{ListingID: "222", URL: "https://example.com/222"})

	assert.True(t, ok)
	assert.Equal(t, []string{"42", "43"}, fake.primaryMsgs)
	assert.Empty(t, fake.fallbackMsg)
}

func TestNotify_PrimaryFailureFallsBackToHTTP(t *testing.T) {
	fake := &fakeTelegram{getMeOK: true, primaryOK: false, fallbackOK: true}
	n := newTestNotifier(t, fake, "42")

	ok := n.Notify(context.Background(), &models.RawListing{ListingID: "222", URL: "https://example.com/222"})

	assert.True(t, ok)
	require.Len(t, fake.fallbackMsg, 1)
	assert.Equal(t, "42", fake.fallbackMsg[0]["chat_id"])
	assert.Equal(t, "HTML", fake.fallbackMsg[0]["parse_mode"])
}

func TestNotify_ConstructionFailureSelectsFallbackClient(t *testing.T) {
	fake := &fakeTelegram{getMeOK: false, fallbackOK: true}
	n := newTestNotifier(t, fake, "42")

	_, isFallback := n.client.(*fallbackClient)
	require.True(t, isFallback)
	assert.Nil(t, n.Responder("hello"))

	ok := n.Notify(context.Background(), &models.RawListing{ListingID: "1", URL: "https://example.com/1"})

	assert.True(t, ok)
	assert.Empty(t, fake.primaryMsgs)
	assert.Len(t, fake.fallbackMsg, 1)
}

func TestNotify_TotalFailureReturnsFalse(t *testing.T) {
	fake := &fakeTelegram{getMeOK: true, primaryOK: false, fallbackOK: false}
	n := newTestNotifier(t, fake, "42")

	ok := n.Notify(context.Background(), &models.RawListing{ListingID: "1", URL: "https://example.com/1"})

	assert.False(t, ok)
	assert.Len(t, fake.primaryMsgs, 1)
	assert.Len(t, fake.fallbackMsg, 1)
}

// chatSender fails for the chats listed in down.
type chatSender struct {
	down  map[string]bool
	calls int
}

func (c *chatSender) Send(_ context.Context, chatID, _ string) error {
	c.calls++
	if c.down[chatID] {
		return errors.New("chat unreachable")
	}
	return nil
}

func TestNotify_PartialDeliveryCountsAsSuccess(t *testing.T) {
	primary := &chatSender{down: map[string]bool{"43": true}}
	fallback := &chatSender{down: map[string]bool{"43": true}}
	n := &Notifier{
		chatIDs:  []string{"42", "43"},
		client:   primary,
		fallback: fallback,
		logger:   utils.NewNopLogger(),
	}

	ok := n.Notify(context.Background(), &models.RawListing{ListingID: "1", URL: "https://example.com/1"})

	assert.True(t, ok)
	assert.Equal(t, 2, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestResponder_AnswersTextCommand(t *testing.T) {
	fake := &fakeTelegram{
		getMeOK:   true,
		primaryOK: true,
		updates: `[
			{"update_id":5,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"/text"}},
			{"update_id":6,"message":{"message_id":2,"date":0,"chat":{"id":43,"type":"private"},"text":"hello"}}
		]`,
	}
	n := newTestNotifier(t, fake, "42")

	r := n.Responder("Hallo, ist die Wohnung noch frei?")
	require.NotNil(t, r)
	require.NoError(t, r.poll(context.Background()))

	assert.Equal(t, 6, r.offset)
	assert.Equal(t, []string{"42"}, fake.primaryMsgs)
}

func TestResponder_DisabledWithoutText(t *testing.T) {
	fake := &fakeTelegram{getMeOK: true, primaryOK: true}
	n := newTestNotifier(t, fake, "42")

	assert.Nil(t, n.Responder(""))

	var nilNotifier *Notifier
	assert.Nil(t, nilNotifier.Responder("text"))
}

func TestResponder_IdlePollOutlastsLongPollWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("holds getUpdates for the full long-poll window")
	}
	fake := &fakeTelegram{
		getMeOK:  true,
		updates:  "[]",
		pollHold: pollTimeout*time.Second + 200*time.Millisecond,
	}
	n := newTestNotifier(t, fake, "42")

	r := n.Responder("Hallo")
	require.NotNil(t, r)
	require.NoError(t, r.poll(context.Background()))
	assert.Equal(t, 0, r.offset)
}

func TestNew_BotClientTimeoutExceedsPollWindow(t *testing.T) {
	n := newTestNotifier(t, &fakeTelegram{getMeOK: true}, "42")
	require.NotNil(t, n.bot)

	botHTTP, ok := n.bot.Client.(*http.Client)
	require.True(t, ok)
	assert.Greater(t, botHTTP.Timeout, pollTimeout*time.Second)

	fallback, ok := n.fallback.(*fallbackClient)
	require.True(t, ok)
	assert.Equal(t, requestTimeout, fallback.http.Timeout)
}
