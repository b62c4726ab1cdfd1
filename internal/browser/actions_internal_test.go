// internal/browser/actions_internal_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/assert"
)

func TestTextXPath(t *testing.T) {
	assert.Equal(t,
		`//*[contains(normalize-space(text()), 'Save Changes')]`,
		textXPath("Save Changes", false))
	assert.Equal(t,
		`//*[normalize-space(text())='Save Changes']`,
		textXPath("Save Changes", true))
}

func TestXPathLiteral(t *testing.T) {
	assert.Equal(t, `'plain'`, xpathLiteral("plain"))
	assert.Equal(t, `"it's here"`, xpathLiteral("it's here"))
	assert.Equal(t, `'say "hi"'`, xpathLiteral(`say "hi"`))
	// Mixed quotes need concat().
	assert.Equal(t, `concat('it', "'", 's "x"')`, xpathLiteral(`it's "x"`))
}

func TestKeyChord(t *testing.T) {
	assert.Equal(t, kb.Enter, keyChord("Enter"))
	assert.Equal(t, kb.Enter, keyChord("return"))
	assert.Equal(t, kb.Tab, keyChord("TAB"))
	assert.Equal(t, kb.Escape, keyChord("esc"))
	assert.Equal(t, kb.ArrowDown, keyChord("down"))
	assert.Equal(t, " ", keyChord("space"))
	// Unknown names pass through as literal characters.
	assert.Equal(t, "a", keyChord("a"))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "click_save_changes", slugify("Click Save Changes"))
	assert.Equal(t, "error_navigate", slugify("error_navigate"))
	assert.Equal(t, "step_1_2", slugify("Step 1/2!"))
	assert.Equal(t, "", slugify("!!!"))
	assert.Equal(t, "trailing", slugify("trailing   "))
}

func TestCombineContext(t *testing.T) {
	t.Run("secondary cancellation propagates", func(t *testing.T) {
		parent := context.Background()
		secondary, cancelSecondary := context.WithCancel(context.Background())

		combined, cancel := CombineContext(parent, secondary)
		defer cancel()

		cancelSecondary()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context not canceled by secondary")
		}
	})

	t.Run("parent cancellation propagates", func(t *testing.T) {
		parent, cancelParent := context.WithCancel(context.Background())
		combined, cancel := CombineContext(parent, context.Background())
		defer cancel()

		cancelParent()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context not canceled by parent")
		}
	})
}
