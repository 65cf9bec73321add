package privacy

import "strings"

// sensitiveTopics blocks promotion outright. Entries are lowercase phrases
// matched against the normalized summary; multi-word entries match as
// substrings, single words on word boundaries.
var sensitiveTopics = []string{
	// mental health
	"depress", "anxiety", "anxious", "therapy", "therapist", "medication",
	"suicid", "self harm", "panic attack", "burnout",
	// moderation actions
	"banned", "ban appeal", "kicked", "muted", "timed out", "warning", "report",
	"moderat",
	// finances
	"salary", "income", "debt", "loan", "paypal", "bank", "credit card",
	"donation", "paid", "owes", "money",
	// health
	"diagnos", "illness", "disease", "hospital", "surgery", "disability",
	"allerg", "sick",
	// security and credentials
	"password", "token", "api key", "secret", "credential", "2fa", "ip address",
	"address", "phone number", "email",
	// relationships
	"dating", "boyfriend", "girlfriend", "partner", "breakup", "divorce",
	"crush", "married",
	// community conflict
	"drama", "argument", "feud", "beef", "fight with", "hates", "grudge",
}

// safeTopics is the allow-list: a summary must positively match one of these
// to be promotable. Explicit self-identifiers, timezone, and technical or
// platform preferences.
var safeTopics = []string{
	// explicit self-identifiers
	"ign", "in-game name", "in game name", "username", "gamertag", "goes by",
	"pronouns",
	// timezone
	"timezone", "time zone", "utc", "gmt",
	// technical / tooling preferences
	"prefers", "uses", "plays with", "texture pack", "shader", "mod", "modpack",
	"client", "launcher", "keyboard", "editor",
	// platform / edition preferences
	"java edition", "bedrock", "edition", "platform", "plays on", "console", "pc",
}

// matchesLexicon reports whether the summary matches any lexicon entry.
// Matching is case-insensitive; single-word entries require word boundaries
// so "sick" does not fire on "sickle".
func matchesLexicon(summary string, lexicon []string) bool {
	lowered := strings.ToLower(summary)
	words := fieldsAlnum(lowered)

	for _, entry := range lexicon {
		if strings.ContainsRune(entry, ' ') || strings.ContainsRune(entry, '-') {
			if strings.Contains(lowered, entry) {
				return true
			}
			continue
		}
		for _, w := range words {
			if w == entry || strings.HasPrefix(w, entry) && isStem(entry) {
				return true
			}
		}
	}
	return false
}

// stems are lexicon entries that deliberately match as word prefixes
// ("depress" → depressed, depression).
var stems = map[string]bool{
	"depress": true, "suicid": true, "moderat": true, "diagnos": true,
	"allerg": true,
}

func isStem(entry string) bool {
	return stems[entry]
}

// fieldsAlnum splits on any non-alphanumeric rune.
func fieldsAlnum(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}
