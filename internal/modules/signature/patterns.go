package signature

import (
	"regexp"
	"strings"
)

// space is the ECMAScript \s class. RE2's \s is only [\t\n\f\r ], which lets
// \v, NBSP, BOM and the Unicode space separators slip between keywords.
const space = `[\t\n\v\f\r \x{a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}]`

// compile expands \s to space and compiles expr.
func compile(expr string) *regexp.Regexp {
	return regexp.MustCompile(strings.ReplaceAll(expr, `\s`, space))
}

// The pattern lists below are evaluated per category, first match wins.
// Order matters only for Explain, which reports the first hit.

func compilePatterns() map[Category][]Pattern {
	return map[Category][]Pattern{
		SQLI: {
			{Name: "sqli_quoted_boolean", Regex: compile(`(?i)'\s*(OR|AND)\s*(\d+\s*=\s*\d+|')`)},          // ' OR 1=1, ' OR '
			{Name: "sqli_quoted_stacked", Regex: compile(`(?i)'\s*;\s*(DROP|DELETE|INSERT|UPDATE)`)},        // '; DROP TABLE
			{Name: "sqli_quoted_line_comment", Regex: compile(`'\s*--`)},                                    // ' --
			{Name: "sqli_quoted_block_comment", Regex: compile(`'\s*/\*`)},                                  // ' /*
			{Name: "sqli_union_select", Regex: compile(`(?i)\bUNION\b\s+(ALL\s+)?\bSELECT\b`)},              // UNION [ALL] SELECT
			{Name: "sqli_keyword_after_delim", Regex: compile(`(?i)(;|')\s*(SELECT|INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|EXEC)\s`)},
		},
		Traversal: {
			{Name: "path_dotdot_slash", Regex: compile(`\.\./`)},
			{Name: "path_dotdot_backslash", Regex: compile(`\.\.\\`)},
			{Name: "path_dotdot_enc_slash", Regex: compile(`(?i)\.\.%2F`)},
			{Name: "path_dotdot_enc_backslash", Regex: compile(`(?i)\.\.%5C`)},
			{Name: "path_full_enc", Regex: compile(`(?i)%2E%2E%2F`)},
			{Name: "path_etc_passwd", Regex: compile(`(?i)etc/passwd`)},
			{Name: "path_etc_shadow", Regex: compile(`(?i)etc/shadow`)},
			{Name: "path_system32", Regex: compile(`(?i)windows/system32`)},
			{Name: "path_boot_ini", Regex: compile(`(?i)boot\.ini`)},
		},
		XSS: {
			{Name: "xss_script_open", Regex: compile(`(?i)<script[^>]*>`)},
			{Name: "xss_script_close", Regex: compile(`(?i)</script>`)},
			{Name: "xss_javascript_uri", Regex: compile(`(?i)javascript:\s*[^;]`)},
			{Name: "xss_event_handler", Regex: compile(`(?i)on\w+\s*=\s*["'][^"']*["']`)},
			{Name: "xss_eval", Regex: compile(`(?i)eval\s*\(`)},
			{Name: "xss_alert", Regex: compile(`(?i)alert\s*\(`)},
			{Name: "xss_document_write", Regex: compile(`(?i)document\.write\s*\(`)},
			{Name: "xss_cookie_assign", Regex: compile(`(?i)document\.cookie\s*=`)},
			{Name: "xss_iframe_src", Regex: compile(`(?i)<iframe[^>]*src`)},
			{Name: "xss_img_onerror", Regex: compile(`(?i)<img[^>]*onerror`)},
			{Name: "xss_svg_onload", Regex: compile(`(?i)<svg[^>]*onload`)},
			{Name: "xss_enc_script", Regex: compile(`(?i)%3Cscript`)},
			{Name: "xss_entity_script", Regex: compile(`(?i)&#60;script`)},
		},
	}
}
