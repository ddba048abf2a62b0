// Package speaker canonicalizes diarization labels and recognizes generic
// participant names that must never become people.
package speaker

import (
	"regexp"
	"strconv"
	"strings"
)

// Unknown is the label used when a transcript carries no speaker at all.
const Unknown = "UNKNOWN SPEAKER"

var (
	reSingleLetter  = regexp.MustCompile(`^[A-Za-z]$`)
	reNumbered      = regexp.MustCompile(`^(?i:speaker[\s_-]*)?(\d+)$`)
	reSpeakerLetter = regexp.MustCompile(`^(?i:speaker)[\s_-]*([A-Za-z])$`)
	reSpaces        = regexp.MustCompile(`\s+`)
)

// NormalizeSpeakerLabel maps diarization labels onto the "SPEAKER <L>" form.
//
//	"A"          -> "SPEAKER A"
//	"Speaker 2"  -> "SPEAKER B"
//	"3"          -> "SPEAKER C"
//	"speaker c"  -> "SPEAKER C"
//	"Speaker 99" -> "SPEAKER 99"
//
// Anything else is upper-cased with whitespace collapsed. Empty input yields
// Unknown so a label is never blank.
func NormalizeSpeakerLabel(label string) string {
	l := reSpaces.ReplaceAllString(strings.TrimSpace(label), " ")
	if l == "" {
		return Unknown
	}
	if reSingleLetter.MatchString(l) {
		return "SPEAKER " + strings.ToUpper(l)
	}
	if m := reNumbered.FindStringSubmatch(l); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= 26 {
			return "SPEAKER " + string(rune('A'+n-1))
		}
	}
	if m := reSpeakerLetter.FindStringSubmatch(l); m != nil {
		return "SPEAKER " + strings.ToUpper(m[1])
	}
	return strings.ToUpper(l)
}

var (
	ordinals = `one|two|three|four|five|six|seven|eight|nine|ten|` +
		`first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth`
	reGenericNumbered = regexp.MustCompile(`^(participant|speaker|person|attendee|respondent|interviewee|user|guest|customer|client|caller)` +
		`( (\d+|[a-z]|` + ordinals + `))?$`)
	reGenericRole = regexp.MustCompile(`^(unknown|unknown (participant|speaker|person)|interviewer|moderator|facilitator|host|researcher|anonymous)$`)
)

// IsPlaceholderName reports whether name is a generic stand-in such as
// "Participant 1", "Speaker B" or "Interviewer" rather than a real person.
func IsPlaceholderName(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return false
	}
	n = strings.NewReplacer("_", " ", "-", " ").Replace(n)
	n = reSpaces.ReplaceAllString(strings.TrimSpace(n), " ")
	return reGenericNumbered.MatchString(n) || reGenericRole.MatchString(n)
}
