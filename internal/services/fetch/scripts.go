package fetch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// In-page scripts. YouTube's About page is rendered from web components with
// unstable markup, so control discovery matches on visible text and
// aria-labels rather than element IDs.

const consentClickJS = `(function() {
	var labels = ['Accept all', 'Reject all', 'I agree'];
	var buttons = document.querySelectorAll('button');
	for (var i = 0; i < buttons.length; i++) {
		var text = (buttons[i].textContent || buttons[i].getAttribute('aria-label') || '').trim();
		for (var j = 0; j < labels.length; j++) {
			if (text.indexOf(labels[j]) !== -1) {
				buttons[i].click();
				return true;
			}
		}
	}
	return false;
})()`

// revealControlScript returns the script that locates the "View email
// address" control; with click=true it also activates it.
func revealControlScript(click bool) string {
	return fmt.Sprintf(revealControlJS, click)
}

const revealControlJS = `(function(click) {
	var els = document.querySelectorAll('a, button, yt-button-renderer, tp-yt-paper-button');
	for (var i = 0; i < els.length; i++) {
		var text = (els[i].textContent || els[i].getAttribute('aria-label') || '').toLowerCase();
		if (text.indexOf('view') !== -1 && text.indexOf('email') !== -1) {
			if (click) {
				els[i].click();
			}
			return true;
		}
	}
	return false;
})(%t)`

const submitClickJS = `(function() {
	var els = document.querySelectorAll('button[type="submit"], input[type="submit"], button');
	for (var i = 0; i < els.length; i++) {
		var isSubmit = els[i].getAttribute('type') === 'submit';
		var text = (els[i].textContent || '').toLowerCase();
		if (isSubmit || text.indexOf('submit') !== -1) {
			els[i].click();
			return true;
		}
	}
	return false;
})()`

// injectTokenJS fills every reCAPTCHA response field with the solved token and
// fires the widget callback so the page treats the challenge as completed.
func injectTokenJS(token string) string {
	quoted := strconv.Quote(token)
	return fmt.Sprintf(`(function() {
	var token = %s;
	var fields = document.querySelectorAll('[name="g-recaptcha-response"], #g-recaptcha-response, .g-recaptcha-response');
	for (var i = 0; i < fields.length; i++) {
		fields[i].innerHTML = token;
		fields[i].value = token;
	}
	if (typeof ___grecaptcha_cfg !== 'undefined') {
		var clients = ___grecaptcha_cfg.clients;
		for (var id in clients) {
			if (clients[id] && clients[id].callback) {
				clients[id].callback(token);
				return true;
			}
		}
	}
	var widget = document.querySelector('.g-recaptcha');
	if (widget) {
		var cb = widget.getAttribute('data-callback');
		if (cb && typeof window[cb] === 'function') {
			window[cb](token);
			return true;
		}
	}
	return fields.length > 0;
})()`, quoted)
}

var (
	sitekeyAttrPattern = regexp.MustCompile(`data-sitekey="([^"]+)"`)
	sitekeyJSONPattern = regexp.MustCompile(`"sitekey"\s*:\s*"([^"]+)"`)
)

// hasChallenge reports whether the rendered page carries a reCAPTCHA widget.
func hasChallenge(html string) bool {
	lower := strings.ToLower(html)
	return strings.Contains(lower, "g-recaptcha") || strings.Contains(lower, "recaptcha")
}

// findSiteKey pulls the reCAPTCHA site key out of the page, attribute form
// first, embedded-config form as fallback.
func findSiteKey(html string) string {
	if m := sitekeyAttrPattern.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	if m := sitekeyJSONPattern.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	return ""
}
