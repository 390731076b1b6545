package adapters

import (
	"context"

	"github.com/NordCoder/Trustwatch/internal/domain/trust"
)

const StaticListName = "StaticList"

// StaticList answers from configured host lists. Hosts on neither list are unknown.
type StaticList struct {
	trusted   map[string]struct{}
	untrusted map[string]struct{}
}

func NewStaticList(trusted, untrusted []string) *StaticList {
	s := &StaticList{
		trusted:   make(map[string]struct{}, len(trusted)),
		untrusted: make(map[string]struct{}, len(untrusted)),
	}
	for _, h := range trusted {
		s.trusted[h] = struct{}{}
	}
	for _, h := range untrusted {
		s.untrusted[h] = struct{}{}
	}
	return s
}

func (s *StaticList) IsTrusted(_ context.Context, host string, _ trust.Criteria) (bool, string) {
	if _, ok := s.untrusted[host]; ok {
		return false, string(trust.LevelUntrusted)
	}
	if _, ok := s.trusted[host]; ok {
		return true, string(trust.LevelTrusted)
	}
	return false, string(trust.LevelUnknown)
}
