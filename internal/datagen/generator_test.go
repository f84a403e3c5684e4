package datagen

import "testing"

func TestProgressReporter(t *testing.T) {
	p := NewProgressReporter("customer", 10, 4)

	crossed := []bool{
		p.Update(2), // 2
		p.Update(2), // 4
		p.Update(3), // 7
		p.Update(3), // 10
	}
	want := []bool{false, true, false, true}
	for i := range want {
		if crossed[i] != want[i] {
			t.Errorf("Update %d: expected crossed=%t, got %t", i, want[i], crossed[i])
		}
	}
	if p.Rows() != 10 {
		t.Errorf("Expected 10 rows, got %d", p.Rows())
	}
	p.Done()
}

func TestProgressReporterDisabled(t *testing.T) {
	p := NewProgressReporter("product", 0, 0)
	if p.Update(100) {
		t.Error("Disabled reporter should never report")
	}
	if p.Rows() != 100 {
		t.Errorf("Expected 100 rows, got %d", p.Rows())
	}
}
