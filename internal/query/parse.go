package query

import "strings"

const (
	tagPrefix        = "tag:"
	untaggedToken    = "no:tag"
	unreadToken      = "status:unread"
	sharedTrueToken  = "shared:true"
	sharedFalseToken = "shared:false"
	todayToken       = "date:today"
)

// Parse turns a filter string into a predicate. Recognised tokens are
// tag:<name>, no:tag, status:unread, shared:true, shared:false and
// date:today; any other token becomes a Search for that token. All tokens
// are combined with And, so an empty filter yields True.
func Parse(filter string) Predicate {
	tokens := Tokens(filter)
	predicates := make([]Predicate, 0, len(tokens))
	for _, token := range tokens {
		predicates = append(predicates, parseToken(token))
	}
	return AndAll(predicates...)
}

func parseToken(token string) Predicate {
	switch {
	case strings.HasPrefix(token, tagPrefix) && len(token) > len(tagPrefix):
		return Tag{Name: strings.TrimPrefix(token, tagPrefix)}
	case token == untaggedToken:
		return Untagged{}
	case token == unreadToken:
		return Unread{}
	case token == sharedTrueToken:
		return Shared{Value: true}
	case token == sharedFalseToken:
		return Shared{Value: false}
	case token == todayToken:
		return Today{}
	default:
		return Search{Text: token}
	}
}
