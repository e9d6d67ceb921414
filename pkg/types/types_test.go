package types

import "testing"

func TestVarcharKey_String(t *testing.T) {
	if s := VarcharKey("test").String(); s != "test" {
		t.Errorf("expected %q, got %q", "test", s)
	}
}

func TestVarcharKey_Compare_LessThan(t *testing.T) {
	k := VarcharKey("apple")
	if result := k.Compare(VarcharKey("banana")); result != -1 {
		t.Errorf("expected -1 for 'apple' < 'banana', got %d", result)
	}
}

func TestVarcharKey_Compare_GreaterThan(t *testing.T) {
	k := VarcharKey("cherry")
	if result := k.Compare(VarcharKey("banana")); result != 1 {
		t.Errorf("expected 1 for 'cherry' > 'banana', got %d", result)
	}
}

func TestVarcharKey_Compare_Equal(t *testing.T) {
	k := VarcharKey("test")
	if result := k.Compare(VarcharKey("test")); result != 0 {
		t.Errorf("expected 0 for 'test' == 'test', got %d", result)
	}
}

func TestVarcharKey_Compare_CaseSensitive(t *testing.T) {
	k := VarcharKey("Apple")
	if result := k.Compare(VarcharKey("apple")); result != -1 {
		t.Errorf("expected -1 for 'Apple' < 'apple' (ASCII order), got %d", result)
	}
}

func TestVarcharKey_Compare_EmptyString(t *testing.T) {
	k := VarcharKey("")
	if result := k.Compare(VarcharKey("a")); result != -1 {
		t.Errorf("expected -1 for '' < 'a', got %d", result)
	}
}
