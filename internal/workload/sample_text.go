package workload

// sampleText is the default corpus prompts are sliced from. Runs may supply
// their own corpus; this one keeps the tool self-contained.
const sampleText = `Deep learning has transformed natural language processing over the last
decade. Large language models are trained on vast corpora of text drawn from books,
articles, encyclopedias, and the open web, learning statistical regularities that let
them complete prompts, answer questions, translate between languages, and summarize
documents. Serving such models efficiently is its own engineering discipline. A single
forward pass through a model with tens of billions of parameters requires moving
gigabytes of weights through the memory hierarchy of an accelerator, and generation is
autoregressive: each new token depends on all of the tokens produced before it. Systems
therefore batch many concurrent requests together, cache the attention keys and values
of earlier tokens, and schedule prefill and decode phases to keep the hardware busy.
Benchmarking these systems well requires care. Throughput and latency trade off against
each other as concurrency rises, the distribution of prompt lengths and generation
lengths shapes the attainable batch size, and the first token of a response arrives far
later than the tokens that follow it. A good load generator must therefore control the
request mix precisely, warm the serving stack before measuring, start its clients at
the same instant, and record per-token timing from the stream rather than trusting
aggregate counters reported by the server. The quick brown fox jumps over the lazy dog.
A journey of a thousand miles begins with a single step. To be or not to be, that is
the question. All that glitters is not gold. In the middle of difficulty lies
opportunity. Simplicity is the ultimate sophistication. The only way to do great work
is to love what you do. Measure what is measurable, and make measurable what is not so.
Science is the belief in the ignorance of experts. Everything should be made as simple
as possible, but not simpler. Somewhere, something incredible is waiting to be known.
The important thing is not to stop questioning; curiosity has its own reason for
existing. An expert is a person who has made all the mistakes that can be made in a
very narrow field. If I have seen further it is by standing on the shoulders of giants.
Nature uses only the longest threads to weave her patterns, so that each small piece of
her fabric reveals the organization of the entire tapestry.`
