package record

import (
	"encoding/json"
	"testing"
)

func TestLoginRoundTrip(t *testing.T) {
	r := New("test-record", NewLoginBody("fakeuser", "fakepass"))

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var got Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	if !r.Equal(&got) {
		t.Fatalf("round trip changed record: got %+v, want %+v", got, r)
	}

	body, ok := got.Body.(*LoginBody)
	if !ok {
		t.Fatalf("body has type %T, want *LoginBody", got.Body)
	}
	if body.Username != "fakeuser" || body.Password.Expose() != "fakepass" {
		t.Errorf("fields = (%q, %q), want (fakeuser, fakepass)", body.Username, body.Password.Expose())
	}
}

func TestWireShape(t *testing.T) {
	r := New("env1", NewEnvironmentBody("MYVAR", "myvalue"))
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	if raw["label"] != "env1" {
		t.Errorf("label = %v, want env1", raw["label"])
	}
	body, ok := raw["body"].(map[string]any)
	if !ok {
		t.Fatalf("body is %T, want object", raw["body"])
	}
	if body["kind"] != "environment" {
		t.Errorf("body.kind = %v, want environment", body["kind"])
	}
	fields, ok := body["fields"].(map[string]any)
	if !ok {
		t.Fatalf("body.fields is %T, want object", body["fields"])
	}
	if fields["variable"] != "MYVAR" || fields["value"] != "myvalue" {
		t.Errorf("fields = %v, want {variable:MYVAR value:myvalue}", fields)
	}
}

func TestKindStrings(t *testing.T) {
	cases := []struct {
		body Body
		want string
	}{
		{NewLoginBody("u", "p"), "login"},
		{NewEnvironmentBody("V", "v"), "environment"},
		{NewUnstructuredBody("c"), "unstructured"},
	}
	for _, c := range cases {
		if got := c.body.Kind().String(); got != c.want {
			t.Errorf("Kind() = %q, want %q", got, c.want)
		}
	}
}

func TestClearWipesSensitiveFields(t *testing.T) {
	r := New("l", NewLoginBody("user", "hunter2"))
	r.Clear()

	body := r.Body.(*LoginBody)
	if body.Password.Expose() != "" {
		t.Errorf("Password survived Clear(): %q", body.Password.Expose())
	}
}

func TestEqualRejectsDifferentLabelsAndKinds(t *testing.T) {
	a := New("l1", NewUnstructuredBody("secret"))
	b := New("l2", NewUnstructuredBody("secret"))
	if a.Equal(b) {
		t.Error("records with different labels compared equal")
	}

	c := New("l1", NewLoginBody("l1", "secret"))
	if a.Equal(c) {
		t.Error("records with different body kinds compared equal")
	}
}
