// Package namecheck validates customer name fields. Cheap local rules run
// first; anything that survives them is judged by the OpenAI Chat Completions
// API. Verdicts are short English phrases translated to Russian for the
// report.
package namecheck

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	openai "github.com/sashabaranov/go-openai"
)

// Field names the checker understands. The values are the Russian labels
// used in the report output.
const (
	FieldFirstName  = "Имя"
	FieldLastName   = "Фамилия"
	FieldPatronymic = "Отчество"
)

// russianReasons maps English verdict phrases to their report phrasing.
var russianReasons = map[string]string{
	"too short":                 "Поле слишком короткое",
	"too long":                  "Поле слишком длинное",
	"contains digits":           "Содержит только цифры",
	"no letters":                "Не содержит букв",
	"contains spaces":           "Поле 'Имя' содержит пробелы (возможно, это ФИО)",
	"not a real name":           "Не похоже на реальное имя/фамилию",
	"not a real last name":      "Не похоже на реальную фамилию",
	"not a real patronymic":     "Не похоже на реальное отчество",
	"typo or grammatical error": "Содержит опечатку или грамматическую ошибку",
	"nickname":                  "Является кличкой",
	"meaningless characters":    "Содержит бессмысленные символы",
	"url":                       "Является URL",
	"email":                     "Является email-адресом",
	"initials/abbreviation":     "Является инициалами/аббревиатурой",
	"generic word":              "Содержит общее слово",
	"test value":                "Является тестовым значением",
	"OK":                        "ОК",
}

// RussianReason renders an English verdict in Russian, falling back to a
// generic phrasing for verdicts outside the known set.
func RussianReason(english string) string {
	clean := strings.TrimRight(strings.ToLower(strings.TrimSpace(english)), ".")
	if ru, ok := russianReasons[clean]; ok {
		return ru
	}
	if ru, ok := russianReasons[strings.TrimSpace(english)]; ok {
		return ru
	}
	return fmt.Sprintf("Неизвестная ошибка: %s", english)
}

// completer is the slice of the OpenAI client the checker needs.
type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Checker validates name fields. A Checker with a nil ai client runs local
// rules only and treats everything else as valid (skip mode).
type Checker struct {
	ai    completer
	model string
}

// New creates a Checker. An empty apiKey yields skip mode.
func New(apiKey, model string) *Checker {
	c := &Checker{model: model}
	if apiKey != "" {
		c.ai = openai.NewClient(apiKey)
	}
	return c
}

// newWithCompleter is used by tests to stub the AI backend.
func newWithCompleter(ai completer, model string) *Checker {
	return &Checker{ai: ai, model: model}
}

const systemPrompt = "You are an assistant verifying the correctness of Russian first names, last names, and patronymics. Pay close attention to typos and grammatical errors in Russian words, and recognize and accept transliterated Russian names."

// Check validates a single field value. It returns whether the value is
// acceptable and the English verdict ("OK" when valid, a short phrase
// otherwise). lastNameEmpty loosens the first-name rules for customers
// recorded with a single name field.
func (c *Checker) Check(ctx context.Context, text, field string, lastNameEmpty bool) (bool, string) {
	if strings.TrimSpace(text) == "" {
		return false, "empty or incorrect type"
	}

	cleaned := strings.TrimSpace(text)
	if strings.EqualFold(cleaned, "спам") {
		return true, "OK"
	}
	if len([]rune(cleaned)) < 2 {
		return false, "too short"
	}
	if len([]rune(cleaned)) > 70 {
		return false, "too long"
	}
	if isDigits(cleaned) {
		return false, "contains digits"
	}
	if !hasLetter(cleaned) {
		return false, "no letters"
	}
	if field == FieldFirstName && strings.Contains(cleaned, " ") {
		return false, "contains spaces"
	}

	if c.ai == nil {
		return true, "API check skipped: API key not configured."
	}
	return c.askAI(ctx, cleaned, field, lastNameEmpty)
}

func (c *Checker) askAI(ctx context.Context, cleaned, field string, lastNameEmpty bool) (bool, string) {
	var fieldEN, extra string
	switch field {
	case FieldFirstName:
		fieldEN = "first name"
		if lastNameEmpty {
			extra = " It can be a first name or a last name if no last name is provided."
		} else {
			extra = " It must be a first name, not a last name."
		}
	case FieldLastName:
		fieldEN = "last name"
	case FieldPatronymic:
		fieldEN = "patronymic"
	default:
		fieldEN = "name part"
	}

	userPrompt := fmt.Sprintf(
		"Evaluate '%s' as a %s.%s Identify typos, grammar issues, meaningless characters, URLs, emails, nicknames. "+
			"It must resemble a **real Russian name, last name, or patronymic (or their transliteration)**. "+
			"**Do not accept initials ('VA', 'DM', 'A.V.'), abbreviations, or generic words ('client', 'test')**. "+
			"'Rodion', 'Vyatkin', 'Раздольская' (as a last name) are valid. Respond 'OK' or briefly describe the single most relevant issue (max 5 words) "+
			"using one of these phrases: 'not a real name', 'not a real last name', 'not a real patronymic', 'typo or grammatical error', 'nickname', 'meaningless characters', 'url', 'email', 'initials/abbreviation', 'generic word', 'test value'.",
		cleaned, fieldEN, extra)

	resp, err := c.ai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   20,
		Temperature: 0.1,
	})
	if err != nil || len(resp.Choices) == 0 {
		// A flaky AI check must not flag valid customers.
		return true, "OpenAI API check error (skipped)."
	}
	verdict := strings.TrimSpace(resp.Choices[0].Message.Content)
	if strings.EqualFold(verdict, "OK") {
		return true, "OK"
	}
	return false, verdict
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
