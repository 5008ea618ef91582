/*
 * template.go, part of gocistem.
 *
 *
 * Copyright 2025 The gocistem developers
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 *
 */

package prog

import (
	"fmt"
	"strings"
)

//The answer decks of the cisTEM programs are line-oriented: every prompt
//gets exactly one answer line, and which prompts appear depends on earlier
//boolean answers. A Deck mirrors that structure as an ordered list of line
//groups, each group either unconditional or keyed to a named boolean flag.
//Assembling picks the active groups in order; rendering then substitutes
//the %(name)verb placeholders in a single pass. There is no control flow
//in the deck text itself.

//group is one contiguous run of answer lines. An empty flag means the
//group is always emitted.
type group struct {
	flag string
	text string
}

//Deck is the stdin template for one program, before substitution.
type Deck struct {
	program string
	groups  []group
}

//NewDeck returns an empty deck for the named program. The name is only
//used to identify the program in errors.
func NewDeck(program string) *Deck {
	D := new(Deck)
	D.program = program
	return D
}

//Add appends an unconditional group of answer lines to the deck.
//The text must not carry a trailing newline, Assemble adds those.
func (D *Deck) Add(text string) {
	D.groups = append(D.groups, group{"", text})
}

//AddIf appends a group of answer lines emitted only when the named
//flag is set at assembly time.
func (D *Deck) AddIf(flag, text string) {
	D.groups = append(D.groups, group{flag, text})
}

//Assemble joins the active groups, in the order they were added, into the
//deck text to be rendered. Flags absent from on count as unset.
func (D *Deck) Assemble(on map[string]bool) string {
	active := make([]string, 0, len(D.groups))
	for _, g := range D.groups {
		if g.flag == "" || on[g.flag] {
			active = append(active, g.text)
		}
	}
	return strings.Join(active, "\n") + "\n"
}

//Render assembles the deck and substitutes its placeholders from params.
func (D *Deck) Render(on map[string]bool, params map[string]interface{}) (string, error) {
	text, err := Render(D.program, D.Assemble(on), params)
	if err != nil {
		return "", errDecorate(err, "Deck.Render")
	}
	return text, nil
}

//Render substitutes every %(name)verb placeholder in deck with the value of
//params[name]. The verb is one of d, f or s, with an optional width/precision
//prefix as in fmt (so %(lowRes)0.2f works). Substitution is a single pass: a
//placeholder whose name is missing from params is an error, never an empty
//answer line, as the programs would silently misread the rest of the deck.
func Render(program, deck string, params map[string]interface{}) (string, error) {
	var b strings.Builder
	for len(deck) > 0 {
		open := strings.Index(deck, "%(")
		if open < 0 {
			b.WriteString(deck)
			break
		}
		b.WriteString(deck[:open])
		deck = deck[open+2:]
		end := strings.IndexByte(deck, ')')
		if end < 0 {
			return "", Error{ErrBadPlaceholder, program, "", "unclosed %(", []string{"Render"}, true}
		}
		name := deck[:end]
		deck = deck[end+1:]
		pre := 0
		for pre < len(deck) && strings.ContainsRune("0123456789.+- #", rune(deck[pre])) {
			pre++
		}
		if pre >= len(deck) {
			return "", Error{ErrBadPlaceholder, program, "", name + " has no format verb", []string{"Render"}, true}
		}
		verb := deck[:pre+1]
		deck = deck[pre+1:]
		v, ok := params[name]
		if !ok {
			return "", Error{ErrMissingKey, program, "", name, []string{"Render"}, true}
		}
		formatted, err := formatAnswer(name, verb, v, program)
		if err != nil {
			return "", errDecorate(err, "Render")
		}
		b.WriteString(formatted)
	}
	return b.String(), nil
}

//formatAnswer renders one placeholder value. The float verb accepts ints
//too, as several deck parameters (frame numbers, box sizes) are naturally
//integers on the caller's side.
func formatAnswer(name, verb string, v interface{}, program string) (string, error) {
	switch verb[len(verb)-1] {
	case 'd':
		switch n := v.(type) {
		case int:
			return fmt.Sprintf("%"+verb, n), nil
		case int64:
			return fmt.Sprintf("%"+verb, n), nil
		}
	case 'f':
		switch n := v.(type) {
		case float64:
			return fmt.Sprintf("%"+verb, n), nil
		case int:
			return fmt.Sprintf("%"+verb, float64(n)), nil
		}
	case 's':
		if s, ok := v.(string); ok {
			return fmt.Sprintf("%"+verb, s), nil
		}
	default:
		return "", Error{ErrBadVerb, program, "", fmt.Sprintf("%s: %%(...)%s", name, verb), []string{"formatAnswer"}, true}
	}
	return "", Error{ErrBadValue, program, "", fmt.Sprintf("%s is %T, verb is %s", name, v, verb), []string{"formatAnswer"}, true}
}
