package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// maxInitDataAge bounds how old a signed initData payload may be
const maxInitDataAge = 24 * time.Hour

// User is the Mini-App host user as carried in initData
type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// TelegramID returns the stable string form used as the coach key
func (u User) TelegramID() string {
	return strconv.FormatInt(u.ID, 10)
}

// DisplayName returns the best-known display name
func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// InitData is the parsed Mini-App launch payload
type InitData struct {
	User     *User
	AuthDate time.Time
	QueryID  string
	Theme    *ThemeParams
}

// ParseInitData parses the query-string initData payload the Mini App
// forwards on every API call
func ParseInitData(raw string) (*InitData, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse init data: %w", err)
	}

	data := &InitData{QueryID: values.Get("query_id")}

	if userJSON := values.Get("user"); userJSON != "" {
		var user User
		if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
		data.User = &user
	}

	if authDate := values.Get("auth_date"); authDate != "" {
		seconds, err := strconv.ParseInt(authDate, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid auth_date: %w", err)
		}
		data.AuthDate = time.Unix(seconds, 0)
	}

	if themeJSON := values.Get("theme_params"); themeJSON != "" {
		var theme ThemeParams
		if err := json.Unmarshal([]byte(themeJSON), &theme); err != nil {
			return nil, fmt.Errorf("failed to decode theme params: %w", err)
		}
		data.Theme = &theme
	}

	return data, nil
}

// ValidateInitData checks the HMAC signature Telegram attaches to initData.
// The data-check string is every field except hash, sorted, joined by
// newlines; the key is HMAC-SHA256 of the bot token under "WebAppData".
func ValidateInitData(raw, botToken string) error {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return fmt.Errorf("failed to parse init data: %w", err)
	}

	providedHash := values.Get("hash")
	if providedHash == "" {
		return fmt.Errorf("init data carries no hash")
	}

	pairs := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		pairs = append(pairs, key+"="+values.Get(key))
	}
	sort.Strings(pairs)
	checkString := strings.Join(pairs, "\n")

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(checkString))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(providedHash)) {
		return fmt.Errorf("init data signature mismatch")
	}

	if authDate := values.Get("auth_date"); authDate != "" {
		seconds, err := strconv.ParseInt(authDate, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid auth_date: %w", err)
		}
		if time.Since(time.Unix(seconds, 0)) > maxInitDataAge {
			return fmt.Errorf("init data expired")
		}
	}

	return nil
}
