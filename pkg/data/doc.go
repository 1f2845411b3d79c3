// Package data fetches property details, property values, rent estimates and
// rental comps for arbitrarily many addresses.
//
// Every endpoint accepts only a small batch of addresses per request. A service
// splits the input into chunks, runs at most Workers requests at a time and
// returns a single result stream:
//
//	c, err := client.New(client.DefaultConfig(""))
//	if err != nil {
//		return err
//	}
//	d := data.New(c, data.Config{Workers: c.Config().Workers})
//	defer d.Close()
//
//	for result, err := range d.PropertyValues.Fetch(ctx, slices.Values(addresses), data.FetchOptions{}) {
//		if err != nil {
//			// err is a *data.ChunkError naming the addresses of the failed chunk
//			continue
//		}
//		fmt.Println(result.Token, result.PropertyValue.Value)
//	}
//
// Rental comps results carry a per-address APICode derived from the embedded
// error message. Addresses that fail because a server dependency was
// unavailable are sent again, once, in a follow-up request for that chunk.
package data
