// internal/browser/stealth.go
package browser

import (
	"encoding/json"
	"fmt"
)

// EvasionScript produces the JavaScript registered on every new document of
// a session, before any page script runs.
type EvasionScript interface {
	Source(profile FingerprintProfile) string
}

// StaticScript is an EvasionScript that ignores the profile.
type StaticScript string

// Source implements EvasionScript.
func (s StaticScript) Source(FingerprintProfile) string { return string(s) }

// StealthScript hides the usual automation markers and keeps navigator,
// screen and WebGL answers consistent with the session profile.
type StealthScript struct{}

type stealthParams struct {
	Platform            string   `json:"platform"`
	Languages           []string `json:"languages"`
	Width               int      `json:"width"`
	Height              int      `json:"height"`
	WebGLVendor         string   `json:"webglVendor"`
	WebGLRenderer       string   `json:"webglRenderer"`
	HardwareConcurrency int      `json:"hardwareConcurrency"`
	DeviceMemory        int      `json:"deviceMemory"`
}

// Source implements EvasionScript.
func (StealthScript) Source(p FingerprintProfile) string {
	params, err := json.Marshal(stealthParams{
		Platform:            p.Platform,
		Languages:           p.Languages,
		Width:               p.Width,
		Height:              p.Height,
		WebGLVendor:         p.WebGLVendor,
		WebGLRenderer:       p.WebGLRenderer,
		HardwareConcurrency: p.HardwareConcurrency,
		DeviceMemory:        p.DeviceMemory,
	})
	if err != nil {
		params = []byte("{}")
	}
	return fmt.Sprintf("(() => {\nconst fp = %s;\n%s\n})();", params, stealthBody)
}

const stealthBody = `
const define = (obj, prop, value) => {
  try { Object.defineProperty(obj, prop, { get: () => value, configurable: true }); } catch (e) {}
};

define(Navigator.prototype, 'webdriver', undefined);
if (fp.platform) define(Navigator.prototype, 'platform', fp.platform);
if (fp.languages && fp.languages.length) define(Navigator.prototype, 'languages', fp.languages);
if (fp.hardwareConcurrency) define(Navigator.prototype, 'hardwareConcurrency', fp.hardwareConcurrency);
if (fp.deviceMemory) define(Navigator.prototype, 'deviceMemory', fp.deviceMemory);

const fakePlugins = [
  { name: 'PDF Viewer', filename: 'internal-pdf-viewer', description: 'Portable Document Format' },
  { name: 'Chrome PDF Viewer', filename: 'internal-pdf-viewer', description: 'Portable Document Format' },
  { name: 'Chromium PDF Viewer', filename: 'internal-pdf-viewer', description: 'Portable Document Format' },
];
define(Navigator.prototype, 'plugins', Object.assign(fakePlugins.slice(), { item: i => fakePlugins[i], namedItem: n => fakePlugins.find(p => p.name === n) }));
define(Navigator.prototype, 'mimeTypes', Object.assign([{ type: 'application/pdf', suffixes: 'pdf' }], { item: () => null, namedItem: () => null }));

if (!window.chrome) {
  window.chrome = {};
}
window.chrome.runtime = window.chrome.runtime || { connect: () => {}, sendMessage: () => {}, id: undefined };
window.chrome.app = window.chrome.app || { isInstalled: false, InstallState: {}, RunningState: {} };

if (navigator.permissions && navigator.permissions.query) {
  const originalQuery = navigator.permissions.query.bind(navigator.permissions);
  navigator.permissions.query = (params) =>
    params && params.name === 'notifications'
      ? Promise.resolve({ state: Notification.permission, onchange: null })
      : originalQuery(params);
}

if (navigator.getBattery) {
  const battery = { charging: true, chargingTime: 0, dischargingTime: Infinity, level: 1,
    addEventListener: () => {}, removeEventListener: () => {} };
  navigator.getBattery = () => Promise.resolve(battery);
}

if (fp.width && fp.height) {
  define(Screen.prototype, 'width', fp.width);
  define(Screen.prototype, 'height', fp.height);
  define(Screen.prototype, 'availWidth', fp.width);
  define(Screen.prototype, 'availHeight', fp.height - 40);
  define(window, 'outerWidth', fp.width);
  define(window, 'outerHeight', fp.height);
}

const patchWebGL = (proto) => {
  if (!proto || !fp.webglVendor) return;
  const getParameter = proto.getParameter;
  proto.getParameter = function (param) {
    if (param === 37445) return fp.webglVendor;
    if (param === 37446) return fp.webglRenderer;
    return getParameter.call(this, param);
  };
};
patchWebGL(window.WebGLRenderingContext && WebGLRenderingContext.prototype);
patchWebGL(window.WebGL2RenderingContext && WebGL2RenderingContext.prototype);

for (const key of Object.keys(window)) {
  if (/^cdc_|^\$cdc_|__webdriver|__selenium|__driver/.test(key)) {
    try { delete window[key]; } catch (e) {}
  }
}
`
