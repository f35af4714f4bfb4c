/*
Package client provides a Go client for ridge's HTTP Job API Surface,
used by cmd/ridgectl.

	c := client.NewClient("http://127.0.0.1:8080")
	job, err := c.Install(ctx, clusterID)
	if err != nil {
		log.Fatal(err)
	}
	err = c.Stream(ctx, job.ID, func(line string) {
		fmt.Println(line)
	})
*/
package client
