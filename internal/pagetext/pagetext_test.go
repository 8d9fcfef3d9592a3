package pagetext

import (
	"strings"
	"testing"
)

func TestExtract_PrefersArticle(t *testing.T) {
	html := `<html><head><title>A Title</title></head><body>
		<nav><p>Menu item one</p></nav>
		<article><p>The main story.</p><p>Second paragraph.</p></article>
		<footer><p>Copyright</p></footer>
	</body></html>`

	page, err := ExtractString(html)
	if err != nil {
		t.Fatalf("ExtractString: %v", err)
	}
	if page.Title != "A Title" {
		t.Errorf("expected title, got %q", page.Title)
	}
	if page.Text != "The main story.\nSecond paragraph." {
		t.Errorf("unexpected text %q", page.Text)
	}
	if strings.Contains(page.Text, "Menu item") || strings.Contains(page.Text, "Copyright") {
		t.Error("navigation and footer must be stripped")
	}
}

func TestExtract_StripsScriptsAndStyles(t *testing.T) {
	html := `<html><body>
		<script>var secret = "nope";</script>
		<style>p { color: red }</style>
		<p>Visible content.</p>
	</body></html>`

	page, err := ExtractString(html)
	if err != nil {
		t.Fatalf("ExtractString: %v", err)
	}
	if strings.Contains(page.Text, "secret") || strings.Contains(page.Text, "color") {
		t.Errorf("script/style content leaked: %q", page.Text)
	}
	if page.Text != "Visible content." {
		t.Errorf("unexpected text %q", page.Text)
	}
}

func TestExtract_FallsBackToBody(t *testing.T) {
	html := `<html><body><p>Just a paragraph.</p><p>And another.</p></body></html>`
	page, err := ExtractString(html)
	if err != nil {
		t.Fatalf("ExtractString: %v", err)
	}
	if page.Text != "Just a paragraph.\nAnd another." {
		t.Errorf("unexpected text %q", page.Text)
	}
}

func TestExtract_NormalizesWhitespace(t *testing.T) {
	html := "<html><body><p>spaced \n\t out    text</p></body></html>"
	page, err := ExtractString(html)
	if err != nil {
		t.Fatalf("ExtractString: %v", err)
	}
	if page.Text != "spaced out text" {
		t.Errorf("whitespace not normalized: %q", page.Text)
	}
}

func TestExtract_NoBlockElements(t *testing.T) {
	html := `<html><body><div>bare div text</div></body></html>`
	page, err := ExtractString(html)
	if err != nil {
		t.Fatalf("ExtractString: %v", err)
	}
	if page.Text != "bare div text" {
		t.Errorf("unexpected text %q", page.Text)
	}
}
