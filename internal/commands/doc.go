// Package commands is the catalogue of socket commands the appliance pushes
// over its state socket.
//
// Frames follow a colon protocol: "<command>" or "<command>:<argument>", where
// the argument is usually JSON. Each known command is registered here with a
// description, an example frame and the name of its payload type so tools can
// list them and the pub/sub relay can map them to bus topics.
//
// Usage:
//
//	cmd, ok := commands.Default().Get("battery")
//	if ok {
//		fmt.Println(cmd.Topic()) // vrpanel.socket.battery
//	}
package commands
