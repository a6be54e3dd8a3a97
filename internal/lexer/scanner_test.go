package lexer

import "testing"

func kinds(toks []Token) []TokenKind {
	out := make([]TokenKind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func sameKinds(t *testing.T, got []TokenKind, want []TokenKind) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d tokens %v, want %d tokens %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestTokenizeOperatorsAndKeywords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []TokenKind
	}{
		{
			name:  "var decl",
			input: "var x = 1\n",
			want:  []TokenKind{VAR, IDENT, ASSIGN, INT, NEWLINE, EOF},
		},
		{
			name:  "power and floor div",
			input: "2 ** 3 // 4\n",
			want:  []TokenKind{INT, POWER, INT, FLOOR_DIV, INT, NEWLINE, EOF},
		},
		{
			name:  "range with step",
			input: "1..10 step 2\n",
			want:  []TokenKind{INT, DOTDOT, INT, STEP, INT, NEWLINE, EOF},
		},
		{
			name:  "optional chain and null coalesce",
			input: "a?.b ?? c\n",
			want:  []TokenKind{IDENT, QUESTION_DOT, IDENT, QUESTION_QUESTION, IDENT, NEWLINE, EOF},
		},
		{
			name:  "keywords are not identifiers",
			input: "if elif else while true false null\n",
			want:  []TokenKind{IF, ELIF, ELSE, WHILE, TRUE, FALSE, NULL, NEWLINE, EOF},
		},
		{
			name:  "let is not a keyword",
			input: "let\n",
			want:  []TokenKind{IDENT, NEWLINE, EOF},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks := NewLexer(tt.input, "<test>").Tokenize()
			sameKinds(t, kinds(toks), tt.want)
		})
	}
}

func TestTokenizeEmitsIndentAndDedent(t *testing.T) {
	input := "if x\n    y\nz\n"
	toks := NewLexer(input, "<test>").Tokenize()
	got := kinds(toks)
	want := []TokenKind{IF, IDENT, NEWLINE, INDENT, IDENT, NEWLINE, DEDENT, IDENT, NEWLINE, EOF}
	sameKinds(t, got, want)
}

func TestTokenizeStringLiteral(t *testing.T) {
	toks := NewLexer(`"hello"`, "<test>").Tokenize()
	if len(toks) < 1 || toks[0].Kind != STRING {
		t.Fatalf("first token = %v, want STRING", toks)
	}
	if toks[0].Lexeme != "hello" {
		t.Errorf("STRING lexeme = %q, want %q", toks[0].Lexeme, "hello")
	}
}

func TestTokenizeTracksLineAndColumn(t *testing.T) {
	toks := NewLexer("x\ny", "<test>").Tokenize()
	var yTok Token
	for _, tok := range toks {
		if tok.Kind == IDENT && tok.Lexeme == "y" {
			yTok = tok
		}
	}
	if yTok.Line != 2 {
		t.Errorf("y's line = %d, want 2", yTok.Line)
	}
}
