package builtins

import (
	"testing"
	"time"

	"slate/internal/value"
)

func TestDriverFor(t *testing.T) {
	cases := map[string]string{
		"sqlite":     "sqlite",
		"sqlite3":    "sqlite",
		"postgres":   "postgres",
		"postgresql": "postgres",
		"mysql":      "mysql",
		"sqlserver":  "sqlserver",
		"mssql":      "sqlserver",
	}
	for kind, want := range cases {
		got, err := driverFor(kind)
		if err != nil || got != want {
			t.Errorf("driverFor(%q) = %q, %v, want %q, nil", kind, got, err, want)
		}
	}
	if _, err := driverFor("oracle"); err == nil {
		t.Error("driverFor(\"oracle\") should have failed")
	}
}

func TestSQLParams(t *testing.T) {
	args := []value.Value{value.NewString("x"), value.Int32(5), value.Bool(true), value.Null()}
	out := sqlParams(args)
	if out[0].(string) != "x" {
		t.Errorf("sqlParams[0] = %v, want \"x\"", out[0])
	}
	if out[1].(int64) != 5 {
		t.Errorf("sqlParams[1] = %v, want 5", out[1])
	}
	if out[2].(bool) != true {
		t.Errorf("sqlParams[2] = %v, want true", out[2])
	}
	if out[3] != nil {
		t.Errorf("sqlParams[3] = %v, want nil", out[3])
	}
}

func TestSQLToValue(t *testing.T) {
	if v := sqlToValue(nil); v.Kind != value.KindNull {
		t.Errorf("sqlToValue(nil).Kind = %v, want KindNull", v.Kind)
	}
	if v := sqlToValue(int64(42)); v.Kind != value.KindInt32 || v.AsInt32() != 42 {
		t.Errorf("sqlToValue(int64(42)) = %v, want Int32(42)", v)
	}
	big := int64(1) << 40
	if v := sqlToValue(big); v.Kind != value.KindFloat64 {
		t.Errorf("sqlToValue(%d).Kind = %v, want KindFloat64 (out of int32 range)", big, v.Kind)
	}
	if v := sqlToValue([]byte("hi")); value.HeapOf(v).(*value.StringObj).Value != "hi" {
		t.Errorf("sqlToValue([]byte(\"hi\")) did not round-trip to \"hi\"")
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if v := sqlToValue(now); value.HeapOf(v).(*value.StringObj).Value != now.Format(time.RFC3339) {
		t.Errorf("sqlToValue(time.Time) did not format as RFC3339")
	}
}
