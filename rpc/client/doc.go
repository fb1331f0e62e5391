// Package client implements a client for the lKV line protocol.
//
// Key Components:
//
//   - Conn: A single connection. Dial waits for the first prompt, Do sends one
//     request line and returns the response up to the next prompt.
//
//   - RPCStore: Implements store.IStore over a Conn by translating each call
//     into a verb and parsing the response. Error responses become *store.Error
//     values, "not found" errors keep the RetCNotFound code.
//
// Usage Example:
//
//	s, err := client.NewRPCStore(common.ClientConfig{
//	  Endpoint:      "localhost:8080",
//	  TimeoutSecond: 5,
//	})
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer s.Close()
//
//	s.Set("mykey", "myvalue")
//	value, _ := s.Get("mykey")
//
// Keys and values sent through RPCStore must not contain whitespace, the
// server splits request lines into whitespace separated tokens.
package client
