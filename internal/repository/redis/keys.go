package redis

import "fmt"

const ns = "karago:v1"

func KeyTableList() string {
	return ns + ":tables"
}

func KeyTable(tableID int64) string {
	return fmt.Sprintf("%s:table:%d", ns, tableID)
}

func KeyVisit(visitID string) string {
	return fmt.Sprintf("%s:visit:%s", ns, visitID)
}

func KeyCrossTableQueue() string {
	return ns + ":queue"
}
