package metadata

import (
	"sync"

	"github.com/dolthub/swiss"
)

var freeNodeAllocator = sync.Pool{
	New: func() any {
		return &freeNode{}
	},
}

type freeNode struct {
	block  int
	bucket int
	prev   *freeNode
	next   *freeNode
}

type freeBucket struct {
	head  *freeNode
	tail  *freeNode
	count int
}

// freeIndex is a set of free block offsets split into buckets. Each bucket keeps its blocks
// in the order they were pushed. nodes maps a block offset to its node so that a block can
// be dropped in constant time when it is absorbed by a merge.
type freeIndex struct {
	buckets []freeBucket
	nodes   *swiss.Map[int, *freeNode]
}

func newFreeIndex(bucketCount int) *freeIndex {
	return &freeIndex{
		buckets: make([]freeBucket, bucketCount),
		nodes:   swiss.NewMap[int, *freeNode](42),
	}
}

func (x *freeIndex) push(bucket, block int) {
	if x.nodes.Has(block) {
		panic("block is already in the free index")
	}

	node := freeNodeAllocator.Get().(*freeNode)
	node.block = block
	node.bucket = bucket
	node.next = nil

	b := &x.buckets[bucket]
	node.prev = b.tail
	if b.tail != nil {
		b.tail.next = node
	} else {
		b.head = node
	}
	b.tail = node
	b.count++

	x.nodes.Put(block, node)
}

func (x *freeIndex) remove(block int) bool {
	node, ok := x.nodes.Get(block)
	if !ok {
		return false
	}

	b := &x.buckets[node.bucket]
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		b.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		b.tail = node.prev
	}
	b.count--

	x.nodes.Delete(block)

	node.prev = nil
	node.next = nil
	freeNodeAllocator.Put(node)
	return true
}

func (x *freeIndex) first(bucket int) *freeNode {
	return x.buckets[bucket].head
}

func (x *freeIndex) count() int {
	return x.nodes.Count()
}

func (x *freeIndex) clear() {
	for i := range x.buckets {
		for node := x.buckets[i].head; node != nil; {
			next := node.next
			node.prev = nil
			node.next = nil
			freeNodeAllocator.Put(node)
			node = next
		}
		x.buckets[i] = freeBucket{}
	}

	x.nodes = swiss.NewMap[int, *freeNode](42)
}
