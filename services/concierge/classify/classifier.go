// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classify categorizes guest queries against ordered pattern
// groups and serves the canned answers used by the cascade's fallback
// stage.
//
// Classification is a pure function: no I/O, no state, recomputed per
// query. Group order is a designed priority: a query matching both
// "cancel" and "booking" vocabulary must resolve per the order below,
// not alphabetically.
package classify

import "regexp"

// Category is a classifier label.
type Category string

const (
	CategoryGreeting Category = "greeting"
	CategoryBooking  Category = "booking"
	CategoryPayment  Category = "payment"
	CategoryLocation Category = "location"
	CategoryHelp     Category = "help"
	CategoryCancel   Category = "cancel"
)

// patternGroup binds a category to its match patterns.
type patternGroup struct {
	category Category
	patterns []*regexp.Regexp
}

// groups is evaluated in order; the first matching group wins.
//
// Ordering notes: cancel vocabulary ("cancel my room") must not be
// swallowed by booking, so booking patterns require booking verbs and
// never match on nouns alone. Location's interrogatives are anchored to
// place words so "how do I ..." questions don't leak into it.
var groups = []patternGroup{
	{CategoryGreeting, compileAll(
		`(?i)^\s*(hi|hiya|hello|hey|howdy|yo)\b`,
		`(?i)\bgood\s+(morning|afternoon|evening)\b`,
		`(?i)^\s*(hola|buen[oa]s?\s+(d[ií]as|tardes|noches)|ol[áa]|bom\s+dia|boa\s+(tarde|noite))\b`,
	)},
	{CategoryBooking, compileAll(
		`(?i)\b(book|reserve|reservation|booking)\b.*\b(room|suite|night|stay)\b`,
		`(?i)\b(availab(le|ility)|vacanc(y|ies))\b`,
		`(?i)\bcheck[\s-]?(in|out)\b`,
		`(?i)\b(make|place|new)\b.*\b(booking|reservation)\b`,
		`(?i)\breservar?\b|\breserva\b`,
	)},
	{CategoryPayment, compileAll(
		`(?i)\b(pay|payment|paid|invoice|bill|billing|receipt)\b`,
		`(?i)\b(credit|debit)\s+card\b`,
		`(?i)\b(charge[ds]?|deposit)\b`,
		`(?i)\b(pagar|pago|factura|cobro)\b`,
	)},
	{CategoryLocation, compileAll(
		`(?i)\bwhere\s+(is|are|can i find)\b`,
		`(?i)\b(address|directions?|located|location|map)\b`,
		`(?i)\bhow\s+(do i|to)\s+get\s+(there|to)\b`,
		`(?i)\b(d[óo]nde|direcci[óo]n|onde fica|endere[çc]o)\b`,
	)},
	{CategoryHelp, compileAll(
		`(?i)\b(help|assist(ance)?|support)\b`,
		`(?i)\bwhat\s+can\s+you\s+do\b`,
		`(?i)\b(ayuda|ajuda)\b`,
	)},
	{CategoryCancel, compileAll(
		`(?i)\bcancel(l(ed|ing|ation))?\b`,
		`(?i)\bcall\s+off\b`,
		`(?i)\b(cancelar|cancelaci[óo]n|cancelamento)\b`,
	)},
}

func compileAll(exprs ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		compiled[i] = regexp.MustCompile(expr)
	}
	return compiled
}

// Classify categorizes a query.
//
// # Outputs
//
//   - Category: The first matching group's category.
//   - string: The pattern that matched, for observability.
//   - bool: False when no group matches (the query is uncategorized).
func Classify(text string) (Category, string, bool) {
	if text == "" {
		return "", "", false
	}
	for _, group := range groups {
		for _, pattern := range group.patterns {
			if pattern.MatchString(text) {
				return group.category, pattern.String(), true
			}
		}
	}
	return "", "", false
}
