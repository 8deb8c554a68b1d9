package storage

import (
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SanitizeSegment turns free text into a safe object key segment: accents
// are stripped, letters lowercased and anything outside [a-z0-9._-] becomes
// a single dash.
func SanitizeSegment(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, value)
	if err != nil {
		stripped = value
	}
	stripped = strings.NewReplacer("đ", "d", "Đ", "D").Replace(stripped)

	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(stripped) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-.")
	if out == "" {
		return "untitled"
	}
	return out
}

func ExercisePrefix(teacherID, classID, title string) string {
	return path.Join("exercises", teacherID, classID, SanitizeSegment(title))
}

func SubmissionPrefix(classID, exerciseID, studentID string) string {
	return path.Join("submissions", classID, exerciseID, studentID)
}

func AvatarPrefix(profileID string) string {
	return path.Join("avatars", profileID)
}

// ObjectKey places a sanitized file name under prefix, made unique by the
// upload time.
func ObjectKey(prefix, fileName string, at time.Time) string {
	return path.Join(prefix, strconv.FormatInt(at.UnixNano(), 10)+"-"+SanitizeSegment(fileName))
}
