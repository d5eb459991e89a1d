package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"raftedit/tables"
)

var errNoMatch = errors.New("no match")

// smash smashes "funny characters" (which includes anything that's remotely tricky to type into a command line) in a string into the '_' character
func smash(in string) string {
	out := ""
	for _, c := range in {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			out += string(c)
		} else {
			out += "_"
		}
	}
	return out
}

// string matching functions, in strictly increasing order of desperation
var fuzzy = []func(input string, candidate string) bool{
	func(i string, c string) bool { return i == c },
	func(i string, c string) bool { return strings.ToUpper(i) == strings.ToUpper(c) },
	func(i string, c string) bool { return smash(strings.ToUpper(i)) == smash(strings.ToUpper(c)) },
	func(i string, c string) bool {
		return strings.HasPrefix(smash(strings.ToUpper(c)), smash(strings.ToUpper(i)))
	},
	func(i string, c string) bool {
		return strings.Contains(smash(strings.ToUpper(c)), smash(strings.ToUpper(i)))
	},
}

// fuzzy_reverse_lookup looks up "backwards" in a translation map
//
// trans: map to be looked up in
// to: map value
// what: type of thing to be looked up, as a human-readable string.  Only used in errors.
//
// Returns the key and the value actually matched (not necessarily equal to "to" due to fuzzy matching)
func fuzzy_reverse_lookup[K comparable](trans map[K]string, to string, what string) (K, string, error) {
	var K0 K

	for _, match := range fuzzy {
		matches := []K{}
		names := []string{}
		for k, v := range trans {
			if match(to, v) {
				matches = append(matches, k)
				names = append(names, v)
			}
		}
		if len(matches) == 0 {
			continue
		}
		if len(matches) > 1 {
			sort.Strings(names)
			return K0, "", fmt.Errorf("ambiguous %v: %q could be any of {%v}", what, to, strings.Join(names, ", "))
		}

		return matches[0], names[0], nil
	}

	return K0, "", fmt.Errorf("%w: %q is not a known %v", errNoMatch, to, what)
}

// fuzzy_pick matches input against a list of names
func fuzzy_pick(names []string, input string, what string) (string, error) {
	trans := map[string]string{}
	for _, n := range names {
		trans[n] = n
	}
	k, _, err := fuzzy_reverse_lookup(trans, input, what)
	return k, err
}

// parse_mode turns a command line argument into a mode code.  Numbers
// (decimal or 0x hex) are taken as-is, even if no mode has that code;
// anything else is matched against the mode names.
func parse_mode(arg string, modes tables.Modes) (byte, error) {
	n, err := strconv.ParseUint(arg, 0, 8)
	if err == nil {
		return byte(n), nil
	}
	if _, is_num := strconv.ParseInt(arg, 0, 64); is_num == nil {
		return 0, fmt.Errorf("%v is out of range; mode codes are 0-255", arg)
	}

	code, _, err := fuzzy_reverse_lookup(modes.Map(), arg, "game mode")
	if err != nil {
		return 0, err
	}
	return code, nil
}
