// Package groundlink implements the gRPC ground link of the onboard computer.
//
// Uplink carries a batch of command frames terminated by end_of_frame.
// Downlink is a server stream of response frames. Payloads travel as
// google.protobuf.BytesValue so the service needs no generated code: the
// service descriptor and client stubs are declared here by hand.
package groundlink
