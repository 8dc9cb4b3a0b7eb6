// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import "testing"

func TestNormalizeQuery(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "HELLO There", "hello there"},
		{"punctuation stripped", "Hello, there!!", "hello there"},
		{"whitespace collapsed", "  hello \t there \n", "hello there"},
		{"mixed", "  What's   the CHECK-IN time?? ", "whats the checkin time"},
		{"empty", "", ""},
		{"only punctuation", "?!...", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeQuery(tc.in); got != tc.want {
				t.Errorf("NormalizeQuery(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestKey_NormalizationCollision(t *testing.T) {
	// "Hello!" and "hello" must collide by design.
	if Key("Hello!", "en") != Key("hello", "en") {
		t.Error("expected punctuation/casing variants to produce one key")
	}
	if Key("  hello   there ", "en") != Key("Hello There", "en") {
		t.Error("expected whitespace variants to produce one key")
	}
}

func TestKey_LanguageSeparation(t *testing.T) {
	if Key("hello", "en") == Key("hello", "es") {
		t.Error("expected different languages to produce different keys")
	}
}
