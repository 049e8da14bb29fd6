package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/joestump/bookmarks/internal/query"
)

// likeEscaper escapes LIKE wildcards with '!', which every supported
// dialect accepts through an explicit ESCAPE clause.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// compile turns p into a WHERE fragment over the bookmarks table aliased as
// "b", plus its positional arguments. Placeholders are '?' and must be
// rebound before execution. now anchors the Today predicate; lower names
// the SQL function that folds case, applied to both sides of every Search
// comparison.
func compile(p query.Predicate, now time.Time, lower string) (string, []interface{}, error) {
	switch v := p.(type) {
	case nil, query.True:
		return "1 = 1", nil, nil

	case query.Search:
		tokens := query.Tokens(v.Text)
		if len(tokens) == 0 {
			return "1 = 1", nil, nil
		}
		clauses := make([]string, 0, len(tokens))
		args := make([]interface{}, 0, 3*len(tokens))
		for _, tok := range tokens {
			pattern := "%" + likeEscaper.Replace(tok) + "%"
			clauses = append(clauses, fmt.Sprintf(`(%[1]s(b.title) LIKE %[1]s(?) ESCAPE '!'`+
				` OR %[1]s(b.url) LIKE %[1]s(?) ESCAPE '!'`+
				` OR EXISTS (SELECT 1 FROM bookmark_tags st WHERE st.bookmark_id = b.identifier AND %[1]s(st.tag_name) LIKE %[1]s(?) ESCAPE '!'))`, lower))
			args = append(args, pattern, pattern, pattern)
		}
		return strings.Join(clauses, " AND "), args, nil

	case query.Tag:
		return `EXISTS (SELECT 1 FROM bookmark_tags tt WHERE tt.bookmark_id = b.identifier AND tt.tag_name = ?)`,
			[]interface{}{v.Name}, nil

	case query.Untagged:
		return `NOT EXISTS (SELECT 1 FROM bookmark_tags ut WHERE ut.bookmark_id = b.identifier)`, nil, nil

	case query.Unread:
		return `b.to_read = ?`, []interface{}{true}, nil

	case query.Shared:
		return `b.shared = ?`, []interface{}{v.Value}, nil

	case query.Today:
		return `b.date >= ?`, []interface{}{now.Add(-24 * time.Hour).UTC()}, nil

	case query.And:
		left, largs, err := compile(v.Left, now, lower)
		if err != nil {
			return "", nil, err
		}
		right, rargs, err := compile(v.Right, now, lower)
		if err != nil {
			return "", nil, err
		}
		return "(" + left + ") AND (" + right + ")", append(largs, rargs...), nil

	default:
		return "", nil, fmt.Errorf("unsupported predicate %T", p)
	}
}
