package config

// DefaultRegions maps region names to the CSS selector of the container
// watched for mutations.
func DefaultRegions() map[string]string {
	return map[string]string{
		"header":    "[class*='symbol-title'], .contract-header",
		"timeframe": "[class*='interval'], .kline-toolbar",
		"leverage":  "[class*='leverage'], [class*='margin-mode']",
		"position":  "[class*='position-table'], .positions",
	}
}

// DefaultSelectors maps logical field names to candidate selectors, tried
// in order.
func DefaultSelectors() map[string][]string {
	return map[string][]string{
		"symbol":    {"[data-testid='symbol-name']", ".symbol-title h1", "[class*='symbolName']"},
		"timeframe": {"[data-testid='interval-active']", ".kline-toolbar .active", "[class*='interval'] .selected"},
		"leverage":  {"[data-testid='leverage-btn']", "[class*='leverage'] button", ".leverage-value"},
		"margin":    {"[data-testid='margin-mode']", "[class*='margin-mode'] button"},
		"position":  {"[data-testid='position-row']", ".positions tr.position", "[class*='position-table'] .row"},
	}
}
