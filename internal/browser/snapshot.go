// internal/browser/snapshot.go
package browser

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
)

// snapshotScript extracts the page state a human tester would perceive.
// Elements without a rendered box (offsetParent === null) are invisible and
// skipped throughout.
const snapshotScript = `(() => {
	const visible = (el) => el && el.offsetParent !== null;

	const labelFor = (el) => {
		if (el.id) {
			const lab = document.querySelector('label[for="' + CSS.escape(el.id) + '"]');
			if (lab) return lab.innerText.trim();
		}
		const parent = el.closest('label');
		if (parent) return parent.innerText.trim();
		return '';
	};

	const formFields = [];
	document.querySelectorAll('input, textarea').forEach((el) => {
		if (!visible(el)) return;
		const type = (el.type || 'text').toLowerCase();
		if (type === 'hidden' || type === 'submit' || type === 'button') return;
		formFields.push({
			type: type,
			name: el.name || '',
			id: el.id || '',
			value: type === 'password' ? (el.value ? '********' : '') : (el.value || ''),
			label: labelFor(el),
			placeholder: el.placeholder || '',
		});
	});

	const dropdowns = [];
	document.querySelectorAll('select').forEach((el) => {
		if (!visible(el)) return;
		const options = Array.from(el.options).map((o) => ({
			text: o.text.trim(),
			value: o.value,
			selected: o.selected,
		}));
		const sel = el.options[el.selectedIndex];
		dropdowns.push({
			name: el.name || '',
			id: el.id || '',
			label: labelFor(el),
			selected_value: sel ? sel.value : '',
			selected_text: sel ? sel.text.trim() : '',
			options: options,
		});
	});

	const labels = [];
	document.querySelectorAll('label').forEach((el) => {
		if (!visible(el)) return;
		const text = el.innerText.trim();
		if (text) labels.push(text);
	});

	const buttons = [];
	document.querySelectorAll('button, input[type="submit"], input[type="button"], [role="button"]').forEach((el) => {
		if (!visible(el)) return;
		const text = (el.innerText || el.value || '').trim();
		if (text) buttons.push(text);
	});

	return {
		visible_text: document.body ? document.body.innerText : '',
		form_fields: formFields,
		dropdowns: dropdowns,
		labels: labels,
		buttons: buttons,
	};
})()`

// Snapshot extracts the structured page state. When the structured extractor
// fails (broken page, CSP, detached frame) it degrades to a text-only
// snapshot rather than reporting failure.
func (s *Session) Snapshot(ctx context.Context) (*schemas.PageSnapshot, error) {
	snapCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var snap schemas.PageSnapshot
	err := s.runActions(snapCtx, chromedp.Evaluate(snapshotScript, &snap))
	if err == nil {
		return &snap, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	s.logger.Debug("Structured snapshot failed, falling back to text only.", zap.Error(err))

	text, err := s.ReadText(ctx, "body")
	if err != nil {
		return nil, err
	}
	return &schemas.PageSnapshot{VisibleText: text}, nil
}
