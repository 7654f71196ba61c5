package preprocess_test

import (
	"reflect"
	"testing"

	"github.com/hscells/qprober/preprocess"
)

func TestTokenise(t *testing.T) {
	tokens, err := preprocess.Tokenise("Call me Ishmael. Some years ago, 1851 whales!")
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"call", "me", "ishmael", "some", "years", "ago", "whales"}
	if !reflect.DeepEqual(tokens, expected) {
		t.Errorf("expected %v, got %v", expected, tokens)
	}
}

func TestTokenise_Transliterates(t *testing.T) {
	tokens, err := preprocess.Tokenise("Café Müller")
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"cafe", "muller"}
	if !reflect.DeepEqual(tokens, expected) {
		t.Errorf("expected %v, got %v", expected, tokens)
	}
}

func TestDistinct(t *testing.T) {
	terms := preprocess.Distinct([]string{"whale", "the", "whale", "ship"})
	expected := []string{"ship", "the", "whale"}
	if !reflect.DeepEqual(terms, expected) {
		t.Errorf("expected %v, got %v", expected, terms)
	}
	if c := preprocess.Count([]string{"a", "b", "a"}); c["a"] != 2 || c["b"] != 1 {
		t.Errorf("unexpected counts %v", c)
	}
}

func TestIsStopword(t *testing.T) {
	if !preprocess.IsStopword("the") {
		t.Error("expected the to be a stopword")
	}
	if preprocess.IsStopword("whale") {
		t.Error("whale is not a stopword")
	}
}
