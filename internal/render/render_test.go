package render

import (
	"testing"

	"github.com/example/campaign-dispatch/internal/campaign"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		customer campaign.Customer
		want     string
	}{
		{
			name:     "substitutes name",
			template: "Hi {{name}}, come visit us!",
			customer: campaign.Customer{Name: "Alice"},
			want:     "Hi Alice, come visit us!",
		},
		{
			name:     "substitutes every occurrence",
			template: "{{name}}, {{name}}!",
			customer: campaign.Customer{Name: "Bob"},
			want:     "Bob, Bob!",
		},
		{
			name:     "unknown placeholders untouched",
			template: "Hi {{name}}, your table at {{location}} is ready",
			customer: campaign.Customer{Name: "Carol"},
			want:     "Hi Carol, your table at {{location}} is ready",
		},
		{
			name:     "no placeholders",
			template: "Happy hour tonight",
			customer: campaign.Customer{Name: "Dave"},
			want:     "Happy hour tonight",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Render(tc.template, tc.customer); got != tc.want {
				t.Fatalf("Render() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRenderDeterministic(t *testing.T) {
	c := campaign.Customer{Name: "Alice"}
	first := Render("Hi {{name}}", c)
	second := Render("Hi {{name}}", c)
	if first != second {
		t.Fatalf("rendering is not deterministic: %q vs %q", first, second)
	}
}
