// Package security implements the capability model of scripted plugins.
//
// A plugin declares the capabilities it needs in its manifest or script.
// The host module checks them before handing out anything that reaches
// past the plugin itself:
//
//   - context.read: read another plugin's context
//   - command.list: list the registered commands
//   - command.execute: execute commands
//
// Capabilities are hierarchical. Granting "command" grants both
// "command.list" and "command.execute".
//
//	checker := security.NewChecker("outline")
//	checker.Grant(security.CapabilityContextRead)
//	if err := checker.Check(security.CapabilityCommandExecute, "execute"); err != nil {
//	    // denied
//	}
//
// RateLimiter bounds how often a granted operation may run.
package security
