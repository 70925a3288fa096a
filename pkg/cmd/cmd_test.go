package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

type stub struct {
	name, category string
	aliases        []string
	ran            *[]string
}

func (s *stub) Name() string        { return s.name }
func (s *stub) Description() string { return s.name + " command" }
func (s *stub) Aliases() []string   { return s.aliases }
func (s *stub) Category() string    { return s.category }
func (s *stub) Run(_ context.Context, inv *Invocation) error {
	if s.ran != nil {
		*s.ran = append(*s.ran, s.name+":"+inv.Rest())
	}
	return nil
}

func TestParse(t *testing.T) {
	tests := []struct {
		content string
		ok      bool
		name    string
		args    string
	}{
		{"!play never gonna", true, "play", "never gonna"},
		{"  !P   song  ", true, "p", "song"},
		{"!skip", true, "skip", ""},
		{"!", false, "", ""},
		{"play song", false, "", ""},
		{"?play", false, "", ""},
	}
	for _, tt := range tests {
		inv, ok := Parse("!", tt.content)
		if ok != tt.ok {
			t.Errorf("Parse(%q) ok = %v", tt.content, ok)
			continue
		}
		if !ok {
			continue
		}
		if inv.Name != tt.name || inv.Rest() != tt.args {
			t.Errorf("Parse(%q) = %q %q", tt.content, inv.Name, inv.Rest())
		}
	}
}

func TestInvocationArg(t *testing.T) {
	inv := &Invocation{Args: []string{"a", "b"}}
	if inv.Arg(1) != "b" || inv.Arg(2) != "" || inv.Arg(-1) != "" {
		t.Error("Arg out of range handling is wrong")
	}
}

func TestRegistryAliases(t *testing.T) {
	r := NewRegistry()
	play := &stub{name: "play", aliases: []string{"p"}, category: "Music"}
	r.MustRegister(play, &stub{name: "ping"})

	if r.Get("P") != play || r.Get("play") != play {
		t.Error("alias lookup failed")
	}
	if r.Get("nope") != nil {
		t.Error("unknown name resolved")
	}

	err := r.Register(&stub{name: "pause", aliases: []string{"p"}})
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("duplicate alias err = %v", err)
	}
	if r.Get("pause") != nil {
		t.Error("rejected command was partially registered")
	}

	names := []string{}
	for _, c := range r.GetAll() {
		names = append(names, c.Name())
	}
	if strings.Join(names, ",") != "ping,play" {
		t.Errorf("GetAll = %v", names)
	}

	cats, groups := r.ByCategory()
	if strings.Join(cats, ",") != "General,Music" || len(groups["Music"]) != 1 {
		t.Errorf("ByCategory = %v %v", cats, groups)
	}
}

func TestMiddlewareOrderAndRoot(t *testing.T) {
	var trace []string
	base := &stub{name: "skip", aliases: []string{"s"}, ran: &trace}
	mw := func(tag string) Middleware {
		return func(c Command) Command {
			return Wrap(c, func(ctx context.Context, inv *Invocation) error {
				trace = append(trace, tag)
				return c.Run(ctx, inv)
			})
		}
	}

	c := Apply(base, mw("inner"), mw("outer"))
	if err := c.Run(context.Background(), &Invocation{Args: []string{"now"}}); err != nil {
		t.Fatal(err)
	}
	if strings.Join(trace, ",") != "outer,inner,skip:now" {
		t.Errorf("trace = %v", trace)
	}
	if Root(c) != base || c.Name() != "skip" {
		t.Error("wrapping lost the inner command")
	}

	r := NewRegistry()
	r.MustRegister(c)
	if r.Get("s") != c {
		t.Error("aliases of a wrapped command were not registered")
	}
}
