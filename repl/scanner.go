package repl

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"unicode"
)

const (
	EOF = -(iota + 1)
	Error
	Word
	String
	Integer
	Double
)

type Position struct {
	Filename string
	Line     int
	Column   int
}

func (pos Position) String() string {
	s := pos.Filename
	if pos.Line > 0 {
		s += fmt.Sprintf(":%d:%d", pos.Line, pos.Column)
	}
	return s
}

// Scanner splits commands into tokens. A newline or a semicolon ends a command and is
// returned as ';'.
type Scanner struct {
	rr      io.RuneReader
	unread  bool
	read    rune
	line    int
	column  int
	buffer  bytes.Buffer
	Error   error
	Word    string
	String  string
	Integer int64
	Double  float64
	Position
}

func (s *Scanner) Init(rr io.RuneReader, fn string) *Scanner {
	s.rr = rr
	s.Filename = fn
	s.line = 1
	s.column = 0
	return s
}

func (s *Scanner) Scan() rune {
	s.buffer.Reset()

SkipWhitespace:
	r := s.readRune()
	for {
		if r < 0 {
			return r
		}
		if r == '\n' || !unicode.IsSpace(r) {
			break
		}
		r = s.readRune()
	}

	if r == '-' {
		if r := s.readRune(); r == '-' {
			for {
				r = s.readRune()
				if r < 0 {
					return r
				}
				if r == '\n' {
					break
				}
			}
			s.Column = s.column
			s.Line = s.line - 1
			return ';'
		} else if r < 0 {
			if r != EOF {
				return r
			}
		} else {
			s.unreadRune()
		}
	}

	s.Column = s.column
	s.Line = s.line

	if unicode.IsLetter(r) || r == '_' {
		return s.scanWord(r)
	} else if unicode.IsDigit(r) {
		return s.scanNumber(r, 1)
	} else if r == '+' || r == '-' {
		sign := int64(1)
		if r == '-' {
			sign = -1
		}
		n := s.readRune()
		if unicode.IsDigit(n) {
			return s.scanNumber(n, sign)
		}
		s.unreadRune()
		s.Error = fmt.Errorf("unexpected character: %c", r)
		return Error
	} else if r == '\'' {
		return s.scanString()
	} else if r == '\n' || r == ';' {
		return ';'
	} else if r == '(' || r == ')' || r == ',' || r == '=' {
		return r
	} else if r == '\r' {
		goto SkipWhitespace
	}

	s.Error = fmt.Errorf("unexpected character: %c", r)
	return Error
}

func (s *Scanner) readRune() rune {
	if s.unread {
		s.unread = false
		return s.read
	}

	var err error
	s.read, _, err = s.rr.ReadRune()
	if err == io.EOF {
		return EOF
	} else if err != nil {
		s.Error = err
		return Error
	}

	if s.read == '\n' {
		s.line += 1
		s.column = 0
	} else {
		s.column += 1
	}
	return s.read
}

func (s *Scanner) unreadRune() {
	s.unread = true
}

func (s *Scanner) scanWord(r rune) rune {
	for {
		s.buffer.WriteRune(r)
		r = s.readRune()
		if r == EOF {
			break
		} else if r == Error {
			return Error
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			s.unreadRune()
			break
		}
	}

	s.Word = s.buffer.String()
	return Word
}

func (s *Scanner) scanNumber(r rune, sign int64) rune {
	dbl := false
	for {
		s.buffer.WriteRune(r)
		r = s.readRune()
		if r == EOF {
			break
		} else if r == Error {
			return Error
		}
		if !dbl && r == '.' {
			dbl = true
		} else if !unicode.IsDigit(r) {
			s.unreadRune()
			break
		}
	}

	var err error
	if dbl {
		s.Double, err = strconv.ParseFloat(s.buffer.String(), 64)
	} else {
		s.Integer, err = strconv.ParseInt(s.buffer.String(), 10, 64)
	}
	if err != nil {
		s.Error = err
		return Error
	}
	if dbl {
		s.Double *= float64(sign)
		return Double
	}
	s.Integer *= sign
	return Integer
}

func (s *Scanner) scanString() rune {
	for {
		r := s.readRune()
		if r == EOF {
			s.Error = fmt.Errorf("string missing terminating \"'\"")
			return Error
		}
		if r == Error {
			return Error
		}
		if r == '\'' {
			break
		}
		if r == '\\' {
			r = s.readRune()
			if r == EOF {
				s.Error = fmt.Errorf("incomplete string escape")
				return Error
			}
			if r == Error {
				return Error
			}
		}
		s.buffer.WriteRune(r)
	}

	s.String = s.buffer.String()
	return String
}
