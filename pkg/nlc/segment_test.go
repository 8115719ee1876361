package nlc

import "testing"

func TestSegment_Delimiters(t *testing.T) {
	statements, warnings := segment("Permit application tool. Block approval tool; deny intake form")
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v, want none", warnings)
	}
	if len(statements) != 3 {
		t.Fatalf("len(statements) = %d, want 3", len(statements))
	}
	for i, stmt := range statements {
		if stmt.index != i {
			t.Errorf("statements[%d].index = %d", i, stmt.index)
		}
	}
}

func TestSegment_CommaSplitsOnlyBetweenIntents(t *testing.T) {
	// Both sides carry an effect verb: the comma delimits.
	statements, warnings := segment("allow application tool, block approval tool")
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v, want none", warnings)
	}
	if len(statements) != 2 {
		t.Fatalf("len(statements) = %d, want 2", len(statements))
	}

	// Only one side carries a verb: the comma is internal to the statement.
	statements, warnings = segment("allow application tool, with expedited handling")
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v, want none", warnings)
	}
	if len(statements) != 1 {
		t.Fatalf("len(statements) = %d, want 1", len(statements))
	}
}

func TestSegment_AmbiguousFragmentBecomesWarning(t *testing.T) {
	statements, warnings := segment("allow application tool, with extra conditions, block approval tool")
	if len(statements) != 2 {
		t.Fatalf("len(statements) = %d, want 2", len(statements))
	}
	if len(warnings) != 1 {
		t.Fatalf("len(warnings) = %d, want 1", len(warnings))
	}
	if warnings[0].StatementIndex != 1 {
		t.Errorf("warning index = %d, want 1", warnings[0].StatementIndex)
	}
	if warnings[0].Statement != "with extra conditions" {
		t.Errorf("warning statement = %q", warnings[0].Statement)
	}
	// The fragments around the warning keep their own positions.
	if statements[0].index != 0 || statements[1].index != 2 {
		t.Errorf("statement indexes = (%d, %d), want (0, 2)", statements[0].index, statements[1].index)
	}
}

func TestSegment_KeepsBracketsAndNumbersWhole(t *testing.T) {
	statements, _ := segment("allow application tool when state in [CA, NY]")
	if len(statements) != 1 {
		t.Fatalf("len(statements) = %d, want 1", len(statements))
	}

	statements, _ = segment("allow application tool for coverage under 1.5")
	if len(statements) != 1 {
		t.Fatalf("decimal point split the statement: %v", statements)
	}

	statements, _ = segment("allow application tool for coverage under 1,000,000")
	if len(statements) != 1 {
		t.Fatalf("digit-grouping comma split the statement: %v", statements)
	}
}

func TestSegment_EmptyInput(t *testing.T) {
	statements, warnings := segment("   ")
	if len(statements) != 0 || len(warnings) != 0 {
		t.Errorf("segment(blank) = (%v, %v), want nothing", statements, warnings)
	}
}
