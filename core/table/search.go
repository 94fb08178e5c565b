package table

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core"
)

// Option is the label of a search mode, as shown in a view's option picker.
type Option string

const (
	OptionFirstLast     Option = "First, Last"
	OptionLastFirst     Option = "Last, First"
	OptionPhone         Option = "Phone number"
	OptionEmail         Option = "Email"
	OptionTitle         Option = "Name"
	OptionTransactionID Option = "Transaction ID"
)

var (
	ErrEmptySearch   = errors.New("enter something to search for")
	ErrUnknownOption = errors.New("unknown search option")

	nameSeparator = regexp.MustCompile(`[\s,]+`)
)

// Options is the fixed list of search modes offered by one view.
type Options []Option

var (
	UserSearchOptions        = Options{OptionFirstLast, OptionLastFirst, OptionPhone, OptionEmail}
	TitleSearchOptions       = Options{OptionTitle}
	TransactionSearchOptions = Options{OptionTransactionID, OptionFirstLast, OptionLastFirst, OptionEmail}
)

func (opts Options) Has(opt Option) bool {
	for _, o := range opts {
		if o == opt {
			return true
		}
	}
	return false
}

// Default is the first option of the list.
func (opts Options) Default() Option {
	if len(opts) == 0 {
		return ""
	}
	return opts[0]
}

// Parse checks that opt belongs to the list before parsing text.
func (opts Options) Parse(opt Option, text string) (Query, error) {
	if !opts.Has(opt) {
		return nil, core.NewValidationError(ErrUnknownOption, core.FieldError{Field: "option", Error: ErrUnknownOption.Error()})
	}
	return ParseQuery(opt, text)
}

// Query is the structured request body for one search option.
// Implementations: NameQuery, PhoneQuery, EmailQuery, TitleQuery, TransactionQuery.
type Query interface {
	Option() Option
	// Text is the free text the query was parsed from, for redisplay.
	Text() string
	isQuery()
}

type (
	NameQuery struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`

		option Option
		text   string
	}

	PhoneQuery struct {
		PhoneNumber string `json:"phoneNumber"`
	}

	EmailQuery struct {
		Email string `json:"email"`
	}

	TitleQuery struct {
		Name string `json:"name"`
	}

	TransactionQuery struct {
		TransactionID string `json:"transactionId"`
	}
)

func (q NameQuery) Option() Option {
	if q.option == "" {
		return OptionFirstLast
	}
	return q.option
}
func (q NameQuery) Text() string {
	if q.text == "" {
		if q.Option() == OptionLastFirst {
			return strings.TrimSpace(q.LastName + ", " + q.FirstName)
		}
		return strings.TrimSpace(q.FirstName + " " + q.LastName)
	}
	return q.text
}
func (NameQuery) isQuery() {}

func (PhoneQuery) Option() Option { return OptionPhone }
func (q PhoneQuery) Text() string { return q.PhoneNumber }
func (PhoneQuery) isQuery() {}
func (EmailQuery) Option() Option { return OptionEmail }
func (q EmailQuery) Text() string { return q.Email }
func (EmailQuery) isQuery() {}
func (TitleQuery) Option() Option { return OptionTitle }
func (q TitleQuery) Text() string { return q.Name }
func (TitleQuery) isQuery() {}
func (TransactionQuery) Option() Option { return OptionTransactionID }
func (q TransactionQuery) Text() string { return q.TransactionID }
func (TransactionQuery) isQuery() {}

// ParseQuery maps free text and a search option to exactly one Query.
//
// Names are split on whitespace and commas and assigned positionally: the
// first token fills the option's first slot, the remaining tokens fill the
// second. So "Doe, John" is {First: John, Last: Doe} under "Last, First" and
// {First: Doe, Last: John} under "First, Last". A single token leaves the
// second slot empty.
func ParseQuery(opt Option, text string) (Query, error) {
	text = core.CleanString(text)
	if text == "" {
		return nil, emptySearchError()
	}

	switch opt {
	case OptionFirstLast, OptionLastFirst:
		first, rest := splitName(text)
		if first == "" {
			// separators only
			return nil, emptySearchError()
		}
		q := NameQuery{option: opt, text: text}
		if opt == OptionFirstLast {
			q.FirstName, q.LastName = first, rest
		} else {
			q.LastName, q.FirstName = first, rest
		}
		return q, nil
	case OptionPhone:
		return PhoneQuery{PhoneNumber: text}, nil
	case OptionEmail:
		return EmailQuery{Email: strings.ToLower(text)}, nil
	case OptionTitle:
		return TitleQuery{Name: text}, nil
	case OptionTransactionID:
		return TransactionQuery{TransactionID: text}, nil
	default:
		return nil, core.NewValidationError(
			errors.Wrap(ErrUnknownOption, string(opt)),
			core.FieldError{Field: "option", Error: fmt.Sprintf("%s: %q", ErrUnknownOption, opt)},
		)
	}
}

func emptySearchError() error {
	return core.NewValidationError(ErrEmptySearch, core.FieldError{Field: "search", Error: ErrEmptySearch.Error()})
}

func splitName(text string) (string, string) {
	tokens := nameSeparator.Split(text, -1)
	parts := tokens[:0]
	for _, tok := range tokens {
		if tok != "" {
			parts = append(parts, tok)
		}
	}
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// SearchFunc runs a search and returns one page of results.
type SearchFunc[R any] func(ctx context.Context, q Query, page int) (Page[R], error)

// EmptyMessage is the text shown when a search matched nothing.
func EmptyMessage(q Query) string {
	return fmt.Sprintf("No results found for %q (%s).", q.Text(), q.Option())
}
