// Package updater implements the self-update-check capability.
//
// Updates are described by a static JSON manifest served from one of the
// configured endpoints:
//
//	{
//	  "version": "1.2.0",
//	  "notes": "Bug fixes",
//	  "pub_date": "2026-01-02T15:04:05Z",
//	  "platforms": {
//	    "linux-x86_64": {"signature": "<base64 minisign .sig>", "url": "https://..."}
//	  }
//	}
//
// Endpoint URLs may contain {{current_version}}, {{target}} and {{arch}}.
// A 204 response means there is no update. Downloads are verified against
// the configured minisign public key before the install path is replaced.
//
// The capability checks after an initial delay and then on a fixed
// interval, and exposes plugin:updater|check, plugin:updater|status and
// plugin:updater|download_and_install.
package updater
