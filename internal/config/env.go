package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"hwbot/internal/homework"
)

const (
	EnvPracticumToken = "PRACTICUM_TOKEN"
	EnvTelegramToken  = "TELEGRAM_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
)

// Telegram public usernames: 5-32 chars of letters, digits and underscores.
var chatUsername = regexp.MustCompile(`^@[A-Za-z][A-Za-z0-9_]{4,31}$`)

// Credentials are the three secrets the bot cannot run without.
// The chat is either a numeric id or a public "@username".
type Credentials struct {
	APIToken     string
	BotToken     string
	ChatID       int64
	ChatUsername string
}

// Chat renders the configured chat for logs.
func (c Credentials) Chat() string {
	if c.ChatUsername != "" {
		return c.ChatUsername
	}
	return strconv.FormatInt(c.ChatID, 10)
}

// String never prints the tokens.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{chat=%s api_token=%t bot_token=%t}", c.Chat(), c.APIToken != "", c.BotToken != "")
}

// LoadDotEnv loads KEY=VALUE pairs from files (".env" when none given) into
// the process environment. Variables already set win. Missing files are not
// an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	present := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// CredentialsFromEnv reads credentials with lookup (os.LookupEnv when nil).
// Every missing or malformed variable is reported in one ConfigurationError.
func CredentialsFromEnv(lookup func(string) (string, bool)) (Credentials, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(k string) string {
		v, _ := lookup(k)
		return strings.TrimSpace(v)
	}

	var (
		c       Credentials
		missing []string
	)
	c.APIToken = get(EnvPracticumToken)
	if c.APIToken == "" {
		missing = append(missing, EnvPracticumToken)
	}
	c.BotToken = get(EnvTelegramToken)
	if c.BotToken == "" {
		missing = append(missing, EnvTelegramToken)
	}
	rawChat := get(EnvTelegramChatID)
	if rawChat == "" {
		missing = append(missing, EnvTelegramChatID)
	}
	if len(missing) > 0 {
		return Credentials{}, homework.ConfigurationError(
			"missing required environment variables: "+strings.Join(missing, ", "), nil)
	}

	if strings.HasPrefix(rawChat, "@") {
		if !chatUsername.MatchString(rawChat) {
			return Credentials{}, homework.ConfigurationError(
				EnvTelegramChatID+" is not a valid @username", nil)
		}
		c.ChatUsername = rawChat
		return c, nil
	}
	id, err := strconv.ParseInt(rawChat, 10, 64)
	if err != nil {
		return Credentials{}, homework.ConfigurationError(
			EnvTelegramChatID+" must be an integer chat id or @username", errors.Unwrap(err))
	}
	c.ChatID = id
	return c, nil
}
