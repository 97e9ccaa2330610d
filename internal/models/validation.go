package models

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxGameNameLength   = 100
	MaxPlayerNameLength = 50
	MaxCaptionLength    = 200
	MaxTitleLength      = 100
	MinUsernameLength   = 4
	MinPasswordLength   = 8
	DefaultFontType     = "Impact"
)

// FontTypes lists the fonts a meme may be captioned with.
var FontTypes = []string{"Impact", "Arial", "Comic Sans MS", "Helvetica", "Times New Roman"}

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func requireText(field, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", &FieldError{Field: field, Message: "is required"}
	}
	if utf8.RuneCountInString(value) > max {
		return "", &FieldError{Field: field, Message: fmt.Sprintf("must be at most %d characters", max)}
	}
	return value, nil
}

// ValidateGameName trims and checks a game name.
func ValidateGameName(name string) (string, error) {
	return requireText("name", name, MaxGameNameLength)
}

// ValidatePlayerName trims and checks a participant display name.
func ValidatePlayerName(field, name string) (string, error) {
	return requireText(field, name, MaxPlayerNameLength)
}

// ValidateVoterName trims an optional voter display name. An empty name is
// allowed since the origin address, not the name, identifies the voter.
func ValidateVoterName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxPlayerNameLength {
		return "", &FieldError{Field: "voter", Message: fmt.Sprintf("must be at most %d characters", MaxPlayerNameLength)}
	}
	return name, nil
}

// NormalizeCode uppercases and trims a join code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// MemeInput is the caller-supplied part of a meme.
type MemeInput struct {
	ImageID    string `json:"imageId"`
	TopText    string `json:"topText"`
	BottomText string `json:"bottomText"`
	FontType   string `json:"fontType"`
	Creator    string `json:"creator"`
}

// Validate checks captions, font, and creator and fills defaults.
func (in *MemeInput) Validate() error {
	if strings.TrimSpace(in.ImageID) == "" {
		return &FieldError{Field: "imageId", Message: "is required"}
	}
	if utf8.RuneCountInString(in.TopText) > MaxCaptionLength {
		return &FieldError{Field: "topText", Message: fmt.Sprintf("must be at most %d characters", MaxCaptionLength)}
	}
	if utf8.RuneCountInString(in.BottomText) > MaxCaptionLength {
		return &FieldError{Field: "bottomText", Message: fmt.Sprintf("must be at most %d characters", MaxCaptionLength)}
	}
	if in.FontType == "" {
		in.FontType = DefaultFontType
	}
	known := false
	for _, f := range FontTypes {
		if f == in.FontType {
			known = true
			break
		}
	}
	if !known {
		return &FieldError{Field: "fontType", Message: "is not a supported font"}
	}
	creator, err := ValidatePlayerName("creator", in.Creator)
	if err != nil {
		return err
	}
	in.Creator = creator
	return nil
}

// ValidateCredentials checks username and password length bounds.
func ValidateCredentials(username, password string) error {
	if utf8.RuneCountInString(strings.TrimSpace(username)) < MinUsernameLength {
		return &FieldError{Field: "username", Message: fmt.Sprintf("must be at least %d characters", MinUsernameLength)}
	}
	return ValidatePassword("password", password)
}

// ValidatePassword checks the minimum password length.
func ValidatePassword(field, password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return &FieldError{Field: field, Message: fmt.Sprintf("must be at least %d characters", MinPasswordLength)}
	}
	return nil
}

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	return r == RoleAdmin || r == RoleUser
}
