package imapmail

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
)

// searchDateLayout is the RFC 3501 search date format, e.g. 2-Jan-2020.
const searchDateLayout = "2-Jan-2006"

// ParseCriteria converts a space-separated list of IMAP SEARCH tokens
// into search criteria. Flag predicates stand alone; date predicates
// (SINCE, BEFORE, ON, SENTSINCE, SENTBEFORE, SENTON), header predicates
// (SUBJECT, FROM, TO, CC, BCC, HEADER), text predicates (TEXT, BODY),
// size predicates (LARGER, SMALLER) and keyword predicates (KEYWORD,
// UNKEYWORD) take the following token as their value, two for HEADER.
// Values containing spaces are not supported.
func ParseCriteria(value string) (*imap.SearchCriteria, error) {
	criteria := imap.NewSearchCriteria()
	tokens := strings.Fields(value)
	for i := 0; i < len(tokens); i++ {
		token := strings.ToUpper(tokens[i])
		switch token {
		case "ALL":
			// No restriction.
		case "SEEN":
			criteria.WithFlags = append(criteria.WithFlags, imap.SeenFlag)
		case "UNSEEN":
			criteria.WithoutFlags = append(criteria.WithoutFlags, imap.SeenFlag)
		case "FLAGGED":
			criteria.WithFlags = append(criteria.WithFlags, imap.FlaggedFlag)
		case "UNFLAGGED":
			criteria.WithoutFlags = append(criteria.WithoutFlags, imap.FlaggedFlag)
		case "ANSWERED":
			criteria.WithFlags = append(criteria.WithFlags, imap.AnsweredFlag)
		case "UNANSWERED":
			criteria.WithoutFlags = append(criteria.WithoutFlags, imap.AnsweredFlag)
		case "DELETED":
			criteria.WithFlags = append(criteria.WithFlags, imap.DeletedFlag)
		case "UNDELETED":
			criteria.WithoutFlags = append(criteria.WithoutFlags, imap.DeletedFlag)
		case "DRAFT":
			criteria.WithFlags = append(criteria.WithFlags, imap.DraftFlag)
		case "UNDRAFT":
			criteria.WithoutFlags = append(criteria.WithoutFlags, imap.DraftFlag)
		case "RECENT":
			criteria.WithFlags = append(criteria.WithFlags, imap.RecentFlag)
		case "NEW":
			criteria.WithFlags = append(criteria.WithFlags, imap.RecentFlag)
			criteria.WithoutFlags = append(criteria.WithoutFlags, imap.SeenFlag)
		case "SINCE", "BEFORE", "ON", "SENTSINCE", "SENTBEFORE", "SENTON":
			v, err := takeValue(tokens, &i, token)
			if err != nil {
				return nil, err
			}
			date, err := time.Parse(searchDateLayout, v)
			if err != nil {
				return nil, fmt.Errorf("bad date %q for %s", v, token)
			}
			applyDate(criteria, token, date)
		case "SUBJECT", "FROM", "TO", "CC", "BCC":
			v, err := takeValue(tokens, &i, token)
			if err != nil {
				return nil, err
			}
			criteria.Header.Add(token, v)
		case "HEADER":
			name, err := takeValue(tokens, &i, token)
			if err != nil {
				return nil, err
			}
			v, err := takeValue(tokens, &i, token)
			if err != nil {
				return nil, err
			}
			criteria.Header.Add(name, v)
		case "TEXT":
			v, err := takeValue(tokens, &i, token)
			if err != nil {
				return nil, err
			}
			criteria.Text = append(criteria.Text, v)
		case "BODY":
			v, err := takeValue(tokens, &i, token)
			if err != nil {
				return nil, err
			}
			criteria.Body = append(criteria.Body, v)
		case "LARGER", "SMALLER":
			v, err := takeValue(tokens, &i, token)
			if err != nil {
				return nil, err
			}
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("bad size %q for %s", v, token)
			}
			if token == "LARGER" {
				criteria.Larger = uint32(n)
			} else {
				criteria.Smaller = uint32(n)
			}
		case "KEYWORD":
			v, err := takeValue(tokens, &i, token)
			if err != nil {
				return nil, err
			}
			criteria.WithFlags = append(criteria.WithFlags, v)
		case "UNKEYWORD":
			v, err := takeValue(tokens, &i, token)
			if err != nil {
				return nil, err
			}
			criteria.WithoutFlags = append(criteria.WithoutFlags, v)
		default:
			return nil, fmt.Errorf("unsupported search token %q", token)
		}
	}
	return criteria, nil
}

// applyDate folds one date predicate into the criteria. ON is the
// closed day interval, so it sets both bounds.
func applyDate(criteria *imap.SearchCriteria, token string, date time.Time) {
	switch token {
	case "SINCE":
		criteria.Since = date
	case "BEFORE":
		criteria.Before = date
	case "ON":
		criteria.Since = date
		criteria.Before = date.AddDate(0, 0, 1)
	case "SENTSINCE":
		criteria.SentSince = date
	case "SENTBEFORE":
		criteria.SentBefore = date
	case "SENTON":
		criteria.SentSince = date
		criteria.SentBefore = date.AddDate(0, 0, 1)
	}
}

// takeValue consumes the token after tokens[*i] as a predicate value.
func takeValue(tokens []string, i *int, token string) (string, error) {
	if *i+1 >= len(tokens) {
		return "", fmt.Errorf("%s needs a value", token)
	}
	*i++
	return tokens[*i], nil
}
