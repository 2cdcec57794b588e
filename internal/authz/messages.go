package authz

import (
	"strings"

	"emsp/internal/models"
)

type localized struct {
	en string
	de string
}

var decisionTexts = map[models.AllowedType]localized{
	models.Allowed:    {en: "Charging allowed!", de: "Laden freigegeben!"},
	models.Blocked:    {en: "Sorry, your token is blocked!", de: "Ihr Token ist gesperrt!"},
	models.Expired:    {en: "Sorry, your token has expired!", de: "Ihr Token ist abgelaufen!"},
	models.NoCredit:   {en: "Sorry, you do not have enough credit!", de: "Ihr Guthaben reicht nicht aus!"},
	models.NotAllowed: {en: "Sorry, charging is not allowed!", de: "Laden nicht erlaubt!"},
}

var unknownDecisionText = localized{
	en: "An unknown error occurred!",
	de: "Ein unbekannter Fehler ist aufgetreten!",
}

// DecisionText returns the display text for allowed in lang. Languages other
// than German fall back to English.
func DecisionText(allowed models.AllowedType, lang models.Language) *models.DisplayText {
	t, ok := decisionTexts[allowed]
	if !ok {
		t = unknownDecisionText
	}
	if models.Language(strings.ToLower(strings.TrimSpace(string(lang)))) == models.LanguageGerman {
		return models.NewDisplayText(models.LanguageGerman, t.de)
	}
	return models.NewDisplayText(models.LanguageEnglish, t.en)
}
