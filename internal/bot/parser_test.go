package bot

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	p := NewCommandParser("Respekt_Bot")
	tests := []struct {
		text    string
		cmd     string
		args    []string
		isValid bool
	}{
		{"!топ", "топ", nil, true},
		{"  .Стата @vasya ", "стата", []string{"@vasya"}, true},
		{"/top@respekt_bot", "top", nil, true},
		{"/top@other_bot", "", nil, false},
		{"/login мой пароль", "login", []string{"мой", "пароль"}, true},
		{"+", "", nil, false},
		{"!", "", nil, false},
		{"привет", "", nil, false},
	}
	for _, tt := range tests {
		cmd, args, ok := p.ParseCommand(tt.text)
		if ok != tt.isValid || cmd != tt.cmd || !reflect.DeepEqual(args, tt.args) {
			t.Errorf("ParseCommand(%q) = (%q, %v, %v), want (%q, %v, %v)",
				tt.text, cmd, args, ok, tt.cmd, tt.args, tt.isValid)
		}
	}
}
