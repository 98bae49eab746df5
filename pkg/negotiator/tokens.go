package negotiator

import (
	"strings"

	"github.com/aretw0/parley/pkg/domain"
)

var tokenLabels = map[domain.Token]string{
	domain.TokenYes:         "Yes",
	domain.TokenNo:          "No",
	domain.TokenAll:         "All",
	domain.TokenSkipAll:     "Skip all",
	domain.TokenDontAskMore: "Don't ask again",
}

// Accepted returns the answers req accepts, in display order, and the options suffix shown
// after the question, e.g. " (Y)es/(N)o/(A)ll/(S)kip all".
func Accepted(req domain.ConfirmRequest) ([]domain.Token, string) {
	tokens := []domain.Token{domain.TokenYes, domain.TokenNo}
	options := " (Y)es/(N)o"

	if req.Group != "" {
		if !req.ExplicitYesRequired {
			tokens = append(tokens, domain.TokenAll)
			options += "/(A)ll"
		}
		tokens = append(tokens, domain.TokenSkipAll)
		options += "/(S)kip all"
	}
	if req.AllowNever {
		tokens = append(tokens, domain.TokenDontAskMore)
		options += "/(D)on't ask again"
	}
	return tokens, options
}

// Match resolves a non-empty reply against the accepted tokens. The reply is
// case-insensitive and valid when it is a prefix of exactly one token.
func Match(reply string, accepted []domain.Token) (domain.Token, bool) {
	reply = strings.ToLower(strings.TrimSpace(reply))
	if reply == "" {
		return "", false
	}

	var found domain.Token
	matches := 0
	for _, tok := range accepted {
		if strings.HasPrefix(string(tok), reply) {
			found = tok
			matches++
		}
	}
	if matches != 1 {
		return "", false
	}
	return found, true
}

// Decide maps a resolved token to the boolean handed back to the engine.
func Decide(req domain.ConfirmRequest, tok domain.Token) bool {
	if req.ExplicitYesRequired {
		return tok == domain.TokenYes
	}
	return tok == domain.TokenYes || tok == domain.TokenAll
}

// defaultToken resolves the configured default. A default that matches nothing resolves
// to TokenNo so a misconfiguration is never affirmative.
func defaultToken(req domain.ConfirmRequest, accepted []domain.Token) domain.Token {
	if tok, ok := Match(req.DefaultOrYes(), accepted); ok {
		return tok
	}
	return domain.TokenNo
}

// QuestionText renders the full question shown to the caller.
func QuestionText(req domain.ConfirmRequest) string {
	accepted, options := Accepted(req)
	return req.Question + options + " [" + tokenLabels[defaultToken(req, accepted)] + "]: "
}

func joinTokens(tokens []domain.Token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
