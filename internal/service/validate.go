package service

import (
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/and161185/agora/internal/errs"
	"github.com/and161185/agora/internal/model"
)

// Field limits enforced locally before any request is sent.
const (
	MaxCommunityName = 100
	MaxPostContent   = 1000
	MaxComment       = 500
	MaxMessage       = 1000
	MaxRoomTitle     = 50
)

// requireText trims s and checks it is non-empty and at most max runes.
func requireText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errs.Invalid(field, "is required")
	}
	if utf8.RuneCountInString(s) > max {
		return "", errs.Invalid(field, "must be at most "+strconv.Itoa(max)+" characters")
	}
	return s, nil
}

// optionalText trims s; an empty result becomes nil.
func optionalText(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func requireID(field string, id int64) error {
	if id <= 0 {
		return errs.Invalid(field, "must be positive")
	}
	return nil
}

// pageQuery renders skip/limit. With always set both keys are sent and
// defLimit fills a zero Limit; otherwise only non-zero values are sent.
func pageQuery(p model.Page, defLimit int, always bool) url.Values {
	q := url.Values{}
	limit := p.Limit
	if limit <= 0 {
		limit = defLimit
	}
	if always || p.Skip > 0 {
		q.Set("skip", strconv.Itoa(max(p.Skip, 0)))
	}
	if always || p.Limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

func idPath(prefix string, id int64) string {
	return prefix + strconv.FormatInt(id, 10)
}
