package macro

import (
	"errors"
	"io"
	"testing"

	"github.com/chatframe/mex/log"
)

func quietBuilder() *Builder {
	return NewBuilder(WithBuilderReporter(NewReporter(log.Make(io.Discard))))
}

func TestBuildContentAndHash(t *testing.T) {
	env := quietBuilder().Build(RawEnv{Content: "hello"})

	if env.Content != "hello" {
		t.Errorf("Content = %q", env.Content)
	}

	if env.ContentHash == "" {
		t.Error("ContentHash empty")
	}

	if env.ContentHash != ContentHash("hello") {
		t.Error("ContentHash not stable")
	}

	other := quietBuilder().Build(RawEnv{Content: "different"})
	if other.ContentHash == env.ContentHash {
		t.Error("distinct contents share a hash")
	}
}

func TestBuildNamesSolo(t *testing.T) {
	env := quietBuilder().Build(RawEnv{
		Name1: "User",
		Name2: "Character",
	})

	if env.Names.User != "User" || env.Names.Char != "Character" {
		t.Errorf("names = %+v", env.Names)
	}

	if env.Names.Group != "Character" ||
		env.Names.GroupNotMuted != "Character" {
		t.Errorf("solo group names = %+v, want character name", env.Names)
	}

	if env.Names.NotChar != "User" {
		t.Errorf("solo NotChar = %q, want user", env.Names.NotChar)
	}
}

func TestBuildNamesGroup(t *testing.T) {
	env := quietBuilder().Build(RawEnv{
		Name1:         "User",
		Name2:         "Character",
		GroupSelected: true,
		GroupName:     "The Crew",
	})

	if env.Names.Group != "The Crew" ||
		env.Names.GroupNotMuted != "The Crew" ||
		env.Names.NotChar != "The Crew" {
		t.Errorf("group names = %+v", env.Names)
	}
}

func TestBuildNameOverrides(t *testing.T) {
	env := quietBuilder().Build(RawEnv{
		Name1:         "User",
		Name2:         "Character",
		Name1Override: "Alice",
		Name2Override: "Bob",
		GroupSelected: true,
		GroupName:     "The Crew",
		GroupOverride: "Override Crew",
	})

	if env.Names.User != "Alice" || env.Names.Char != "Bob" {
		t.Errorf("overridden names = %+v", env.Names)
	}

	if env.Names.Group != "Override Crew" {
		t.Errorf("Group = %q, want override", env.Names.Group)
	}
}

func TestBuildCharacterGated(t *testing.T) {
	card := &Character{Description: "desc", Personality: "calm"}

	withoutFlag := quietBuilder().Build(RawEnv{Character: card})
	if withoutFlag.Character != nil {
		t.Error("character populated without ReplaceCharacterCard")
	}

	withFlag := quietBuilder().Build(RawEnv{
		ReplaceCharacterCard: true,
		Character:            card,
	})

	if withFlag.Character == nil {
		t.Fatal("character missing with ReplaceCharacterCard")
	}

	if withFlag.Character.Description != "desc" {
		t.Errorf("Description = %q", withFlag.Character.Description)
	}

	// The card is copied, not shared.
	card.Description = "mutated"

	if withFlag.Character.Description != "desc" {
		t.Error("environment shares the caller's card")
	}
}

func TestBuildOriginalOneShot(t *testing.T) {
	original := "the original text"

	env := quietBuilder().Build(RawEnv{Original: &original})

	if env.Functions.Original == nil {
		t.Fatal("Original helper missing")
	}

	if got := env.Functions.Original(); got != original {
		t.Errorf("first call = %q, want %q", got, original)
	}

	if got := env.Functions.Original(); got != "" {
		t.Errorf("second call = %q, want empty", got)
	}

	// A fresh environment gets a fresh one-shot.
	fresh := quietBuilder().Build(RawEnv{Original: &original})
	if got := fresh.Functions.Original(); got != original {
		t.Errorf("fresh env first call = %q, want %q", got, original)
	}
}

func TestBuildDynamicMacrosOverlay(t *testing.T) {
	env := quietBuilder().Build(RawEnv{
		DynamicMacros: map[string]any{"x": "1"},
	})

	if env.DynamicMacros["x"] != "1" {
		t.Errorf("DynamicMacros = %v", env.DynamicMacros)
	}
}

func TestProviderFailureIsIsolated(t *testing.T) {
	b := quietBuilder()

	b.RegisterProvider(func(*Env, RawEnv) error {
		return errors.New("provider broke")
	}, BucketEarly)

	b.RegisterProvider(func(*Env, RawEnv) error {
		panic("provider panicked")
	}, BucketNormal)

	ran := false

	b.RegisterProvider(func(env *Env, _ RawEnv) error {
		ran = true
		env.Extra["late"] = true

		return nil
	}, BucketLate)

	env := b.Build(RawEnv{Name1: "User"})

	if !ran {
		t.Error("late provider skipped after earlier failures")
	}

	if env.Extra["late"] != true {
		t.Error("late provider result missing")
	}

	if env.Names.User != "User" {
		t.Error("standard providers disrupted by failing provider")
	}
}

func TestProviderBucketOrder(t *testing.T) {
	b := quietBuilder()

	var order []string

	appendOrder := func(tag string) Provider {
		return func(*Env, RawEnv) error {
			order = append(order, tag)

			return nil
		}
	}

	b.RegisterProvider(appendOrder("late"), BucketLate)
	b.RegisterProvider(appendOrder("early"), BucketEarly)
	b.RegisterProvider(appendOrder("normal"), BucketNormal)

	b.Build(RawEnv{})

	// Standard providers are interleaved; only relative bucket order of the
	// registered test providers matters.
	idx := map[string]int{}
	for i, tag := range order {
		idx[tag] = i
	}

	if !(idx["early"] < idx["normal"] && idx["normal"] < idx["late"]) {
		t.Errorf("bucket order = %v", order)
	}
}
